// Package config resolves pipeline settings from defaults, an optional YAML
// file, SMARTSALES_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/smartsales/smartsales/pkg/schema"
	"github.com/smartsales/smartsales/pkg/warehouse"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSettings = errors.New("invalid settings")

type WarehouseSettings struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

type Settings struct {
	RawDir      string `yaml:"raw_dir"`
	PreparedDir string `yaml:"prepared_dir"`
	OutputDir   string `yaml:"output_dir"`

	// Sources maps an entity name to its raw file, relative to RawDir.
	Sources map[string]string `yaml:"sources"`

	Warehouse WarehouseSettings `yaml:"warehouse"`
	Cubes     []CubeConfig      `yaml:"cubes"`

	// MetricsAddr enables the Prometheus listener when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns settings with every default filled in.
func Default() *Settings {
	s := &Settings{}
	_ = s.Validate()
	return s
}

// Load reads path on top of the defaults. An empty path yields the defaults.
func Load(path string) (*Settings, error) {
	s := &Settings{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate fills defaults for unset fields and rejects unknown backends,
// entities and malformed cube definitions.
func (s *Settings) Validate() error {
	if s.RawDir == "" {
		s.RawDir = DefaultRawDir
	}
	if s.PreparedDir == "" {
		s.PreparedDir = DefaultPreparedDir
	}
	if s.OutputDir == "" {
		s.OutputDir = DefaultOutputDir
	}
	if len(s.Sources) == 0 {
		s.Sources = DefaultSources()
	}
	if s.Warehouse.Backend == "" {
		s.Warehouse.Backend = DefaultWarehouseBackend
	}
	if len(s.Cubes) == 0 {
		s.Cubes = []CubeConfig{DefaultCube()}
	}

	wc := s.WarehouseConfig()
	if err := wc.Validate(); err != nil {
		return fmt.Errorf("%w: warehouse: %w", ErrInvalidSettings, err)
	}
	for _, entity := range s.Entities() {
		if _, err := schema.Lookup(entity); err != nil {
			return fmt.Errorf("%w: source %q: %w", ErrInvalidSettings, entity, err)
		}
		if s.Sources[entity] == "" {
			return fmt.Errorf("%w: source %q has no file", ErrInvalidSettings, entity)
		}
	}
	seen := make(map[string]bool, len(s.Cubes))
	for i := range s.Cubes {
		c := &s.Cubes[i]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate cube %q", ErrInvalidSettings, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// Entities returns the configured source entities in warehouse load order.
func (s *Settings) Entities() []string {
	out := make([]string, 0, len(s.Sources))
	for name := range s.Sources {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := schema.LoadOrder(out[i]), schema.LoadOrder(out[j])
		if oi != oj {
			return oi < oj
		}
		return out[i] < out[j]
	})
	return out
}

func (s *Settings) RawPath(entity string) string {
	return filepath.Join(s.RawDir, s.Sources[entity])
}

func (s *Settings) PreparedPath(entity string) string {
	return filepath.Join(s.PreparedDir, entity+PreparedSuffix)
}

func (s *Settings) OutputPath(file string) string {
	return filepath.Join(s.OutputDir, file)
}

// WarehouseConfig falls back to a per-backend file DSN for the embedded
// backends when none is set.
func (s *Settings) WarehouseConfig() warehouse.Config {
	dsn := s.Warehouse.DSN
	if dsn == "" {
		switch warehouse.Backend(s.Warehouse.Backend) {
		case warehouse.BackendSQLite:
			dsn = DefaultWarehouseDSN
		case warehouse.BackendDuckDB:
			dsn = DefaultDuckDBDSN
		}
	}
	return warehouse.Config{
		Backend: warehouse.Backend(s.Warehouse.Backend),
		DSN:     dsn,
	}
}
