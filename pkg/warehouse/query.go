package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/schema"
)

type Reader struct {
	log *slog.Logger
	db  DB
}

func NewReader(log *slog.Logger, db DB) *Reader {
	return &Reader{log: log, db: db}
}

// Query runs an ad-hoc read and returns the result as a dataset.
func (r *Reader) Query(ctx context.Context, query string, args ...any) (*dataset.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query: %w", ErrStorageFailure, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read columns: %w", ErrStorageFailure, err)
	}
	var out [][]dataset.Value
	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %w", ErrStorageFailure, err)
		}
		row := make([]dataset.Value, len(columns))
		for i, v := range raw {
			row[i] = fromDriver(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate rows: %w", ErrStorageFailure, err)
	}
	r.log.Debug("warehouse: query returned rows", "rows", len(out))
	return dataset.New(columns, out...)
}

// Table reads columns (all when none are given) of a warehouse table ordered by
// its primary key.
func (r *Reader) Table(ctx context.Context, name string, columns ...string) (*dataset.Dataset, error) {
	t, err := schema.Lookup(name)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	d := r.db.Dialect()
	quoted := make([]string, len(columns))
	for i, c := range columns {
		if _, ok := t.Column(c); !ok {
			return nil, fmt.Errorf("%w: %s.%s", dataset.ErrMissingColumn, name, c)
		}
		quoted[i] = d.Quote(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(quoted, ", "), d.Quote(name), d.Quote(t.PrimaryKey()))
	return r.Query(ctx, query)
}

// Counts returns the row count of every warehouse table.
func (r *Reader) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(schema.Tables))
	for _, t := range schema.Tables {
		ds, err := r.Query(ctx, "SELECT COUNT(*) AS n FROM "+r.db.Dialect().Quote(t.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t.Name, err)
		}
		n, _ := ds.Value(0, "n").Number()
		out[t.Name] = int(n)
	}
	return out, nil
}
