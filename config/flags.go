package config

import (
	"github.com/spf13/pflag"
)

const (
	FlagRawDir           = "raw-dir"
	FlagPreparedDir      = "prepared-dir"
	FlagOutputDir        = "output-dir"
	FlagWarehouseBackend = "warehouse-backend"
	FlagWarehouseDSN     = "warehouse-dsn"
	FlagMetricsAddr      = "metrics-addr"
)

// RegisterFlags adds the settings overrides to fs. Defaults are left empty so
// that only flags given on the command line take effect.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagRawDir, "", "directory holding the raw CSV extracts (default "+DefaultRawDir+")")
	fs.String(FlagPreparedDir, "", "directory for prepared CSV files (default "+DefaultPreparedDir+")")
	fs.String(FlagOutputDir, "", "directory for cube outputs (default "+DefaultOutputDir+")")
	fs.String(FlagWarehouseBackend, "", "warehouse backend: sqlite, duckdb or postgres (default "+DefaultWarehouseBackend+")")
	fs.String(FlagWarehouseDSN, "", "warehouse data source name (default "+DefaultWarehouseDSN+")")
	fs.String(FlagMetricsAddr, "", "address to serve Prometheus metrics on, e.g. :2112")
}

// ApplyFlags overrides s with the flags that were set on fs and re-validates.
func ApplyFlags(fs *pflag.FlagSet, s *Settings) error {
	for name, dst := range map[string]*string{
		FlagRawDir:           &s.RawDir,
		FlagPreparedDir:      &s.PreparedDir,
		FlagOutputDir:        &s.OutputDir,
		FlagWarehouseBackend: &s.Warehouse.Backend,
		FlagWarehouseDSN:     &s.Warehouse.DSN,
		FlagMetricsAddr:      &s.MetricsAddr,
	} {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return s.Validate()
}

// Resolve loads settings from path and applies the environment and then fs.
func Resolve(path string, fs *pflag.FlagSet) (*Settings, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(s); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := ApplyFlags(fs, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}
