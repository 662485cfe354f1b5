package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvRawDir           = "SMARTSALES_RAW_DIR"
	EnvPreparedDir      = "SMARTSALES_PREPARED_DIR"
	EnvOutputDir        = "SMARTSALES_OUTPUT_DIR"
	EnvWarehouseBackend = "SMARTSALES_WAREHOUSE_BACKEND"
	EnvWarehouseDSN     = "SMARTSALES_WAREHOUSE_DSN"
	EnvMetricsAddr      = "SMARTSALES_METRICS_ADDR"
)

// LoadDotEnv loads variables from the given files, or .env when none are
// given. Missing files are skipped and existing variables are never replaced.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides s with any SMARTSALES_* variables that are set and
// re-validates the result.
func ApplyEnv(s *Settings) error {
	return applyEnv(s, os.LookupEnv)
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) error {
	for name, dst := range map[string]*string{
		EnvRawDir:           &s.RawDir,
		EnvPreparedDir:      &s.PreparedDir,
		EnvOutputDir:        &s.OutputDir,
		EnvWarehouseBackend: &s.Warehouse.Backend,
		EnvWarehouseDSN:     &s.Warehouse.DSN,
		EnvMetricsAddr:      &s.MetricsAddr,
	} {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	return s.Validate()
}
