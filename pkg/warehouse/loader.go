package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/metrics"
	"github.com/smartsales/smartsales/pkg/schema"
)

type LoaderConfig struct {
	Logger *slog.Logger
	DB     DB
	Clock  clockwork.Clock
}

func (cfg *LoaderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Loader struct {
	log   *slog.Logger
	db    DB
	clock clockwork.Clock
}

func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate loader config: %w", err)
	}
	return &Loader{log: cfg.Logger, db: cfg.DB, clock: cfg.Clock}, nil
}

// Batch maps table names to the prepared datasets replacing their contents.
type Batch map[string]*dataset.Dataset

type LoadResult struct {
	RunID    uuid.UUID
	Rows     map[string]int
	Duration time.Duration
}

// CreateSchema creates any missing tables. Existing tables and rows are untouched.
func (l *Loader) CreateSchema(ctx context.Context) error {
	return l.inTx(ctx, "create schema", func(tx *sql.Tx) error {
		return l.createSchema(ctx, tx)
	})
}

func (l *Loader) createSchema(ctx context.Context, tx *sql.Tx) error {
	d := l.db.Dialect()
	for _, t := range schema.Tables {
		if _, err := tx.ExecContext(ctx, d.CreateTable(t)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// Load replaces the contents of every table in batch inside one transaction:
// the schema is ensured, the tables are emptied in reverse dependency order and
// refilled in dependency order. On any failure the transaction is rolled back
// and the warehouse keeps its previous contents.
func (l *Loader) Load(ctx context.Context, batch Batch) (*LoadResult, error) {
	tables := make([]schema.Table, 0, len(batch))
	for name := range batch {
		if _, err := schema.Lookup(name); err != nil {
			return nil, fmt.Errorf("warehouse: %w", err)
		}
	}
	for _, t := range schema.Tables {
		if ds, ok := batch[t.Name]; ok && ds != nil {
			tables = append(tables, t)
		}
	}

	result := &LoadResult{RunID: uuid.New(), Rows: make(map[string]int, len(tables))}
	start := l.clock.Now()
	log := l.log.With("run_id", result.RunID.String())
	log.Info("warehouse: load started", "tables", len(tables))

	err := l.inTx(ctx, "load", func(tx *sql.Tx) error {
		if err := l.createSchema(ctx, tx); err != nil {
			return err
		}
		for i := len(tables) - 1; i >= 0; i-- {
			t := tables[i]
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+l.db.Dialect().Quote(t.Name)); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", t.Name, err)
			}
		}
		for _, t := range tables {
			n, err := l.insert(ctx, log, tx, t, batch[t.Name])
			if err != nil {
				return err
			}
			result.Rows[t.Name] = n
		}
		return nil
	})
	result.Duration = l.clock.Since(start)
	metrics.LoadDuration.Observe(result.Duration.Seconds())
	if err != nil {
		metrics.LoadErrors.Inc()
		log.Error("warehouse: load rolled back", "error", err, "duration", result.Duration.String())
		return nil, err
	}

	for name, n := range result.Rows {
		metrics.LoadRows.WithLabelValues(name).Set(float64(n))
	}
	log.Info("warehouse: load committed", "rows", result.Rows, "duration", result.Duration.String())
	return result, nil
}

// LoadEntity replaces a single table with the same guarantees as Load.
func (l *Loader) LoadEntity(ctx context.Context, name string, ds *dataset.Dataset) (*LoadResult, error) {
	return l.Load(ctx, Batch{name: ds})
}

func (l *Loader) insert(ctx context.Context, log *slog.Logger, tx *sql.Tx, t schema.Table, ds *dataset.Dataset) (int, error) {
	var extra []string
	for _, c := range ds.Columns() {
		if _, ok := t.Column(c); !ok {
			extra = append(extra, c)
		}
	}
	if len(extra) > 0 {
		log.Warn("warehouse: skipping columns not in table", "table", t.Name, "columns", extra)
	}
	if ds.Len() == 0 {
		return 0, nil
	}

	d := l.db.Dialect()
	stmt, err := tx.PrepareContext(ctx, d.Insert(t.Name, t.ColumnNames()))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", t.Name, err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for i := 0; i < ds.Len(); i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, fmt.Errorf("context cancelled while inserting into %s: %w", t.Name, err)
			}
		}
		for j, c := range t.Columns {
			arg, err := d.Arg(c.Type, ds.Value(i, c.Name))
			if err != nil {
				return 0, fmt.Errorf("row %d of %s: %s: %w", i, t.Name, c.Name, err)
			}
			args[j] = arg
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d into %s: %w", i, t.Name, err)
		}
	}
	log.Debug("warehouse: inserted rows", "table", t.Name, "rows", ds.Len())
	return ds.Len(), nil
}

// inTx runs fn in a transaction, retrying the whole transaction on conflicts.
// Every failure is wrapped with ErrStorageFailure.
func (l *Loader) inTx(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	err := retryWithBackoff(ctx, l.log, operation, func() error {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				l.log.Error("warehouse: failed to rollback transaction", "operation", operation, "error", err)
			}
		}()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("warehouse: %s: %w: %w", operation, ErrStorageFailure, err)
	}
	return nil
}
