// Package warehouse owns the relational store behind the pipeline: opening a
// backend, creating the five-table schema, full-replace loads and read queries.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrStorageFailure wraps every error that aborts a warehouse transaction.
var ErrStorageFailure = errors.New("storage failure")

// ErrOutOfRange is returned when a value does not fit its column type.
var ErrOutOfRange = errors.New("value out of range")

// DB is the subset of database/sql the loader and reader need.
type DB interface {
	Dialect() Dialect
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

type Config struct {
	Backend Backend
	DSN     string

	// PingTimeout bounds how long Open waits for the backend to answer.
	PingTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if _, err := DialectFor(c.Backend); err != nil {
		return err
	}
	if c.DSN == "" && c.Backend == BackendPostgres {
		return errors.New("postgres backend requires a DSN")
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 30 * time.Second
	}
	return nil
}

type SQLDB struct {
	*sql.DB
	log     *slog.Logger
	dialect Dialect
}

func (d *SQLDB) Dialect() Dialect { return d.dialect }

// Open connects to the configured backend and waits until it answers a ping.
func Open(ctx context.Context, log *slog.Logger, cfg Config) (*SQLDB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect, _ := DialectFor(cfg.Backend)

	if cfg.Backend != BackendPostgres && cfg.DSN != "" && !strings.HasPrefix(cfg.DSN, ":memory:") {
		path := strings.TrimPrefix(strings.SplitN(cfg.DSN, "?", 2)[0], "file:")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect.singleWriter {
		// Embedded engines serialize writers; one connection avoids lock contention.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	b := backoff.WithContext(backoff.NewExponentialBackOff(), pingCtx)
	err = backoff.Retry(func() error {
		if err := db.PingContext(pingCtx); err != nil {
			log.Debug("warehouse: ping failed, retrying", "backend", cfg.Backend, "error", err)
			return err
		}
		return nil
	}, b)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Backend, err)
	}

	log.Info("warehouse: opened database", "backend", cfg.Backend)
	return &SQLDB{DB: db, log: log, dialect: dialect}, nil
}
