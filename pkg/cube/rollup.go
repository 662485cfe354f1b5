package cube

import (
	"errors"
	"fmt"
	"sort"

	"github.com/smartsales/smartsales/pkg/dataset"
)

// TopN keeps the N rows with the largest By value and folds the rest into one
// labelled row.
type TopN struct {
	By string
	N  int
	// LabelColumn receives Label on the folded row.
	LabelColumn string
	Label       string
	// Sum lists the columns summed into the folded row.
	Sum []string
	// Derived are recomputed on the folded row from its summed columns.
	Derived []Derived
}

func (t *TopN) Validate() error {
	if t.By == "" {
		return errors.New("top-n: sort column is required")
	}
	if t.N <= 0 {
		return fmt.Errorf("top-n: n must be positive, got %d", t.N)
	}
	if t.Label == "" {
		t.Label = "Others"
	}
	return nil
}

// Rollup orders cube by spec.By descending (nulls last, ties by original order)
// and keeps the first N rows, appending a folded row when rows remain.
func Rollup(cube *dataset.Dataset, spec TopN) (*dataset.Dataset, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	for _, c := range append([]string{spec.By}, spec.Sum...) {
		if !cube.Has(c) {
			return nil, fmt.Errorf("top-n: %w: %q", ErrMissingColumn, c)
		}
	}
	if spec.LabelColumn != "" && !cube.Has(spec.LabelColumn) {
		return nil, fmt.Errorf("top-n: %w: %q", ErrMissingColumn, spec.LabelColumn)
	}

	order := make([]int, cube.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := cube.Value(order[a], spec.By), cube.Value(order[b], spec.By)
		if va.IsNull() || vb.IsNull() {
			return !va.IsNull() && vb.IsNull()
		}
		c, _ := dataset.Compare(va, vb)
		return c > 0
	})

	keep := min(spec.N, len(order))
	rows := make([][]dataset.Value, 0, keep+1)
	for _, i := range order[:keep] {
		rows = append(rows, cube.Row(i))
	}
	out, err := dataset.New(cube.Columns(), rows...)
	if err != nil {
		return nil, err
	}
	if keep == len(order) {
		return out, nil
	}

	rest := order[keep:]
	folded := make(dataset.Record, cube.Width())
	for _, c := range spec.Sum {
		v, err := Sum.Apply(collect(cube, rest, c))
		if err != nil {
			return nil, fmt.Errorf("top-n: %s: %w", c, err)
		}
		folded[c] = v
	}
	if spec.LabelColumn != "" {
		folded[spec.LabelColumn] = dataset.Text(spec.Label)
	}
	for _, d := range spec.Derived {
		v, err := d.eval(folded.Get(d.Left), folded.Get(d.Right))
		if err != nil {
			return nil, fmt.Errorf("top-n: %s: %w", d.Name, err)
		}
		folded[d.Name] = v
	}
	others, err := dataset.FromRecords(cube.Columns(), []dataset.Record{folded})
	if err != nil {
		return nil, err
	}
	return dataset.New(cube.Columns(), append(rows, others.Row(0))...)
}
