// Package dataset holds the tabular model shared by the pipeline stages: an
// ordered list of uniquely named columns and rows of typed values.
//
// A Dataset is never modified after construction. Every transformation returns a
// new Dataset, so a value handed to another component cannot be changed under it.
package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrMissingColumn   = errors.New("missing column")
	ErrRowWidth        = errors.New("row width does not match columns")
)

// Record is a column-name view of one row.
type Record map[string]Value

// Get returns the named value, or null when the column is absent.
func (r Record) Get(column string) Value { return r[column] }

type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New builds a dataset from column names and rows. Rows are copied.
func New(columns []string, rows ...[]Value) (*Dataset, error) {
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	out := make([][]Value, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRowWidth, i, len(row), len(columns))
		}
		out[i] = append([]Value(nil), row...)
	}
	return &Dataset{columns: append([]string(nil), columns...), index: index, rows: out}, nil
}

// MustNew is New for literals in tests and fixed tables.
func MustNew(columns []string, rows ...[]Value) *Dataset {
	ds, err := New(columns, rows...)
	if err != nil {
		panic(err)
	}
	return ds
}

// FromRecords builds a dataset with the given column order. Columns a record
// lacks are null; record keys outside columns are ignored.
func FromRecords(columns []string, records []Record) (*Dataset, error) {
	rows := make([][]Value, len(records))
	for i, rec := range records {
		row := make([]Value, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return New(columns, rows...)
}

func buildIndex(columns []string) (map[string]int, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, ok := index[c]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		index[c] = i
	}
	return index, nil
}

func (d *Dataset) Columns() []string { return append([]string(nil), d.columns...) }

func (d *Dataset) Width() int { return len(d.columns) }

func (d *Dataset) Len() int { return len(d.rows) }

func (d *Dataset) Has(column string) bool {
	_, ok := d.index[column]
	return ok
}

func (d *Dataset) Index(column string) (int, bool) {
	i, ok := d.index[column]
	return i, ok
}

// Value returns the cell at row i, or null if the column does not exist.
func (d *Dataset) Value(i int, column string) Value {
	j, ok := d.index[column]
	if !ok {
		return Null()
	}
	return d.rows[i][j]
}

func (d *Dataset) Row(i int) []Value { return append([]Value(nil), d.rows[i]...) }

func (d *Dataset) Record(i int) Record {
	rec := make(Record, len(d.columns))
	for j, c := range d.columns {
		rec[c] = d.rows[i][j]
	}
	return rec
}

func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.rows))
	for i := range d.rows {
		out[i] = d.Record(i)
	}
	return out
}

func (d *Dataset) Column(column string) ([]Value, error) {
	j, ok := d.index[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}
	out := make([]Value, len(d.rows))
	for i, row := range d.rows {
		out[i] = row[j]
	}
	return out, nil
}

func (d *Dataset) Clone() *Dataset {
	rows := make([][]Value, len(d.rows))
	for i, row := range d.rows {
		rows[i] = append([]Value(nil), row...)
	}
	index := make(map[string]int, len(d.index))
	for k, v := range d.index {
		index[k] = v
	}
	return &Dataset{columns: append([]string(nil), d.columns...), index: index, rows: rows}
}

// Filter keeps the rows for which keep returns true, preserving order.
func (d *Dataset) Filter(keep func(i int, rec Record) bool) *Dataset {
	out := &Dataset{columns: d.columns, index: d.index}
	for i, row := range d.rows {
		if keep(i, d.Record(i)) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// MapColumn replaces every value of column with fn(value).
func (d *Dataset) MapColumn(column string, fn func(Value) Value) (*Dataset, error) {
	j, ok := d.index[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}
	rows := make([][]Value, len(d.rows))
	for i, row := range d.rows {
		next := append([]Value(nil), row...)
		next[j] = fn(row[j])
		rows[i] = next
	}
	return &Dataset{columns: d.columns, index: d.index, rows: rows}, nil
}

// WithColumn replaces column if it exists, or appends it otherwise.
func (d *Dataset) WithColumn(column string, values []Value) (*Dataset, error) {
	if len(values) != len(d.rows) {
		return nil, fmt.Errorf("%w: column %q has %d values, want %d", ErrRowWidth, column, len(values), len(d.rows))
	}
	j, exists := d.index[column]
	columns := d.columns
	if !exists {
		columns = append(append([]string(nil), d.columns...), column)
	}
	rows := make([][]Value, len(d.rows))
	for i, row := range d.rows {
		next := append(make([]Value, 0, len(columns)), row...)
		if exists {
			next[j] = values[i]
		} else {
			next = append(next, values[i])
		}
		rows[i] = next
	}
	return New(columns, rows...)
}

// WithColumnNames relabels columns positionally.
func (d *Dataset) WithColumnNames(columns []string) (*Dataset, error) {
	if len(columns) != len(d.columns) {
		return nil, fmt.Errorf("%w: got %d names for %d columns", ErrRowWidth, len(columns), len(d.columns))
	}
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	return &Dataset{columns: append([]string(nil), columns...), index: index, rows: d.rows}, nil
}

// Select projects onto columns in the given order.
func (d *Dataset) Select(columns ...string) (*Dataset, error) {
	idx := make([]int, len(columns))
	for k, c := range columns {
		j, ok := d.index[c]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
		idx[k] = j
	}
	rows := make([][]Value, len(d.rows))
	for i, row := range d.rows {
		next := make([]Value, len(idx))
		for k, j := range idx {
			next[k] = row[j]
		}
		rows[i] = next
	}
	return New(columns, rows...)
}

// Equal reports whether a and b have the same columns and cell values in order.
func Equal(a, b *Dataset) bool {
	if a.Width() != b.Width() || a.Len() != b.Len() {
		return false
	}
	for j, c := range a.columns {
		if b.columns[j] != c {
			return false
		}
	}
	for i := range a.rows {
		for j := range a.rows[i] {
			if !a.rows[i][j].Equal(b.rows[i][j]) {
				return false
			}
		}
	}
	return true
}
