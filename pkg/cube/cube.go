// Package cube builds dimensional aggregates over a dataset.
//
// Rows are grouped by the tuple of dimension values, where null is a value of
// its own. Each group yields one row carrying the dimension values, one column
// per (metric, aggregation) pair, the ordered list of contributing row ids and
// any derived metrics. Groups appear in first-seen order so repeated builds
// over the same data produce identical output.
package cube

import (
	"fmt"
	"math"
	"strings"

	"github.com/smartsales/smartsales/pkg/dataset"
)

type group struct {
	dims []dataset.Value
	rows []int
}

// Build aggregates ds according to spec.
func Build(ds *dataset.Dataset, spec Spec) (*dataset.Dataset, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	need := append(append([]string(nil), spec.Dimensions...), spec.IDColumn)
	for _, m := range spec.Metrics {
		need = append(need, m.Column)
	}
	for _, c := range need {
		if !ds.Has(c) {
			return nil, fmt.Errorf("cube: %w: %q", ErrMissingColumn, c)
		}
	}

	groups := partition(ds, spec.Dimensions)
	columns := spec.Columns()
	rows := make([][]dataset.Value, 0, len(groups))
	for _, g := range groups {
		row := make([]dataset.Value, 0, len(columns))
		row = append(row, g.dims...)
		for _, m := range spec.Metrics {
			values := collect(ds, g.rows, m.Column)
			for _, a := range m.Aggregations {
				v, err := a.Apply(values)
				if err != nil {
					return nil, fmt.Errorf("cube: %s: %w", ColumnName(m.Column, a.String()), err)
				}
				row = append(row, v)
			}
		}
		row = append(row, dataset.List(collect(ds, g.rows, spec.IDColumn)...))
		rows = append(rows, row)
	}

	out, err := dataset.New(columns, rows...)
	if err != nil {
		return nil, err
	}
	return applyDerived(out, spec.Derived)
}

func partition(ds *dataset.Dataset, dims []string) []*group {
	index := make(map[string]*group)
	var order []*group
	for i := 0; i < ds.Len(); i++ {
		key := make([]string, len(dims))
		vals := make([]dataset.Value, len(dims))
		for j, d := range dims {
			vals[j] = ds.Value(i, d)
			key[j] = vals[j].Key()
		}
		k := strings.Join(key, "\x1e")
		g, ok := index[k]
		if !ok {
			g = &group{dims: vals}
			index[k] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, i)
	}
	return order
}

func collect(ds *dataset.Dataset, rows []int, column string) []dataset.Value {
	out := make([]dataset.Value, len(rows))
	for i, r := range rows {
		out[i] = ds.Value(r, column)
	}
	return out
}

// applyDerived appends each derived metric, in order, to every row of cube.
func applyDerived(cube *dataset.Dataset, derived []Derived) (*dataset.Dataset, error) {
	for _, d := range derived {
		values := make([]dataset.Value, cube.Len())
		for i := range values {
			v, err := d.eval(cube.Value(i, d.Left), cube.Value(i, d.Right))
			if err != nil {
				return nil, fmt.Errorf("cube: %s row %d: %w", d.Name, i, err)
			}
			values[i] = v
		}
		var err error
		cube, err = cube.WithColumn(d.Name, values)
		if err != nil {
			return nil, err
		}
	}
	return cube, nil
}

func (d Derived) eval(left, right dataset.Value) (dataset.Value, error) {
	if left.IsNull() || right.IsNull() {
		return dataset.Null(), nil
	}
	l, lok := left.Number()
	r, rok := right.Number()
	if !lok || !rok {
		return dataset.Null(), fmt.Errorf("%w: %s %s %s", ErrNonNumeric, left.Kind(), d.Op, right.Kind())
	}
	li, lInt := left.Int64()
	ri, rInt := right.Int64()
	ints := lInt && rInt

	switch d.Op {
	case Add:
		if ints {
			if n, ok := addInt64(li, ri); ok {
				return dataset.Int(n), nil
			}
		}
		return dataset.Float(l + r), nil
	case Sub:
		if ints {
			if n, ok := subInt64(li, ri); ok {
				return dataset.Int(n), nil
			}
		}
		return dataset.Float(l - r), nil
	case Mul:
		if ints {
			if n, ok := mulInt64(li, ri); ok {
				return dataset.Int(n), nil
			}
		}
		return dataset.Float(l * r), nil
	case Div:
		if r == 0 {
			if d.OnZero == ZeroNull {
				return dataset.Null(), nil
			}
			return dataset.Null(), fmt.Errorf("%w: %s / %s", ErrDivisionByZero, d.Left, d.Right)
		}
		q := l / r
		if math.IsInf(q, 0) || math.IsNaN(q) {
			return dataset.Null(), fmt.Errorf("%w: %s / %s overflowed", ErrDivisionByZero, d.Left, d.Right)
		}
		return dataset.Float(q), nil
	}
	return dataset.Null(), fmt.Errorf("%w: operator %s", ErrInvalidSpec, d.Op)
}
