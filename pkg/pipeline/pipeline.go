// Package pipeline runs the batch stages end to end: prepare raw extracts,
// load the warehouse and build the configured cubes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/smartsales/smartsales/config"
	"github.com/smartsales/smartsales/pkg/cube"
	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/metrics"
	"github.com/smartsales/smartsales/pkg/prepare"
	"github.com/smartsales/smartsales/pkg/warehouse"
)

var (
	ErrMissingSourceFile   = errors.New("missing source file")
	ErrMissingPreparedFile = errors.New("missing prepared file")
)

type Config struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Settings *config.Settings
	DB       warehouse.DB
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Settings == nil {
		return errors.New("settings are required")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return err
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Pipeline struct {
	log      *slog.Logger
	clock    clockwork.Clock
	settings *config.Settings
	loader   *warehouse.Loader
	reader   *warehouse.Reader
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate pipeline config: %w", err)
	}
	loader, err := warehouse.NewLoader(warehouse.LoaderConfig{
		Logger: cfg.Logger,
		DB:     cfg.DB,
		Clock:  cfg.Clock,
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		log:      cfg.Logger,
		clock:    cfg.Clock,
		settings: cfg.Settings,
		loader:   loader,
		reader:   warehouse.NewReader(cfg.Logger, cfg.DB),
	}, nil
}

type Prepared struct {
	Entity string
	Path   string
	Data   *dataset.Dataset
	Report *prepare.Report
}

// Prepare scrubs every configured source and writes one prepared CSV per
// entity. All source files are checked before any work starts, and nothing is
// written until every entity has prepared without a fatal error.
func (p *Pipeline) Prepare(ctx context.Context) ([]Prepared, error) {
	entities := p.settings.Entities()

	var missing []error
	for _, name := range entities {
		path := p.settings.RawPath(name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				missing = append(missing, fmt.Errorf("%w: %s: %s", ErrMissingSourceFile, name, path))
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	out := make([]Prepared, 0, len(entities))
	for _, name := range entities {
		entity, err := prepare.ForName(name)
		if err != nil {
			return nil, err
		}
		raw, err := dataset.ReadCSVFile(p.settings.RawPath(name))
		if err != nil {
			return nil, err
		}
		data, report, err := prepare.New(p.log, entity).Prepare(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", name, err)
		}
		out = append(out, Prepared{Entity: name, Path: p.settings.PreparedPath(name), Data: data, Report: report})
	}

	for _, pr := range out {
		if err := dataset.WriteCSVFile(pr.Path, pr.Data); err != nil {
			return nil, err
		}
		p.log.Info("pipeline: prepared entity", "entity", pr.Entity, "path", pr.Path, "input", pr.Report.Input(), "output", pr.Report.Output())
	}
	return out, nil
}

// Load replaces the warehouse contents with the prepared CSV files.
func (p *Pipeline) Load(ctx context.Context) (*warehouse.LoadResult, error) {
	batch := make(warehouse.Batch)
	for _, name := range p.settings.Entities() {
		path := p.settings.PreparedPath(name)
		ds, err := dataset.ReadCSVFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %s", ErrMissingPreparedFile, name, path)
		}
		if err != nil {
			return nil, err
		}
		batch[name] = ds
	}
	return p.loader.Load(ctx, batch)
}

type CubeResult struct {
	Name    string
	Path    string
	TopPath string
	Cube    *dataset.Dataset
	Top     *dataset.Dataset
}

// Cubes builds every configured cube from the warehouse, verifies its
// traceability lists and writes it under the output directory. No file is
// written until every cube has built.
func (p *Pipeline) Cubes(ctx context.Context) ([]CubeResult, error) {
	out := make([]CubeResult, 0, len(p.settings.Cubes))
	for i := range p.settings.Cubes {
		res, err := p.buildCube(ctx, &p.settings.Cubes[i])
		if err != nil {
			return nil, fmt.Errorf("cube %s: %w", p.settings.Cubes[i].Name, err)
		}
		out = append(out, *res)
	}

	for _, res := range out {
		if err := dataset.WriteCSVFile(res.Path, res.Cube); err != nil {
			return nil, err
		}
		if res.Top != nil {
			if err := dataset.WriteCSVFile(res.TopPath, res.Top); err != nil {
				return nil, err
			}
		}
		p.log.Info("pipeline: cube written", "cube", res.Name, "rows", res.Cube.Len(), "path", res.Path, "top_path", res.TopPath)
	}
	return out, nil
}

func (p *Pipeline) buildCube(ctx context.Context, c *config.CubeConfig) (*CubeResult, error) {
	spec, err := c.Spec()
	if err != nil {
		return nil, err
	}
	source, err := p.reader.Table(ctx, c.Source)
	if err != nil {
		return nil, err
	}

	start := p.clock.Now()
	built, err := cube.Build(source, spec)
	if err != nil {
		return nil, err
	}
	if err := cube.Verify(source, built, spec); err != nil {
		return nil, err
	}
	metrics.CubeBuildDuration.WithLabelValues(c.Name).Observe(p.clock.Since(start).Seconds())
	metrics.CubeRows.WithLabelValues(c.Name).Set(float64(built.Len()))

	if c.Join != nil {
		lookup, err := p.reader.Table(ctx, c.Join.Table, append([]string{c.Join.Key}, c.Join.Columns...)...)
		if err != nil {
			return nil, err
		}
		if built, err = dataset.LeftJoin(built, lookup, c.Join.Key, c.Join.Columns...); err != nil {
			return nil, err
		}
	}

	res := &CubeResult{Name: c.Name, Path: p.settings.OutputPath(c.Output), Cube: built}
	if c.TopN != nil {
		top, err := c.Rollup()
		if err != nil {
			return nil, err
		}
		if res.Top, err = cube.Rollup(built, top); err != nil {
			return nil, err
		}
		res.TopPath = p.settings.OutputPath(c.TopN.Output)
	}
	p.log.Debug("pipeline: cube built", "cube", c.Name, "rows", built.Len(), "source_rows", source.Len())
	return res, nil
}

type RunResult struct {
	Prepared []Prepared
	Load     *warehouse.LoadResult
	Cubes    []CubeResult
}

// Run prepares, loads and cubes in one pass. The warehouse is loaded from the
// freshly prepared datasets rather than re-read from disk.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	prepared, err := p.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	batch := make(warehouse.Batch, len(prepared))
	for _, pr := range prepared {
		batch[pr.Entity] = pr.Data
	}
	load, err := p.loader.Load(ctx, batch)
	if err != nil {
		return nil, err
	}
	cubes, err := p.Cubes(ctx)
	if err != nil {
		return nil, err
	}
	return &RunResult{Prepared: prepared, Load: load, Cubes: cubes}, nil
}
