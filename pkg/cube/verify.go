package cube

import (
	"fmt"
	"math"

	"github.com/smartsales/smartsales/pkg/dataset"
)

// Verify checks that every cube row's id list is non-empty, points at source
// rows sharing the row's dimension values, and re-aggregates to exactly the
// row's aggregate cells.
func Verify(source, cube *dataset.Dataset, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if !source.Has(spec.IDColumn) {
		return fmt.Errorf("cube: verify: %w: %q", ErrMissingColumn, spec.IDColumn)
	}

	byID := make(map[string][]int, source.Len())
	for i := 0; i < source.Len(); i++ {
		k := source.Value(i, spec.IDColumn).Key()
		byID[k] = append(byID[k], i)
	}

	for r := 0; r < cube.Len(); r++ {
		ids := cube.Value(r, spec.TraceColumn).List()
		if len(ids) == 0 {
			return fmt.Errorf("%w: row %d has an empty %s list", ErrTraceMismatch, r, spec.TraceColumn)
		}
		used := make(map[string]int)
		rows := make([]int, 0, len(ids))
		for _, id := range ids {
			k := id.Key()
			candidates := byID[k]
			if used[k] >= len(candidates) {
				return fmt.Errorf("%w: row %d references unknown id %s", ErrTraceMismatch, r, id)
			}
			rows = append(rows, candidates[used[k]])
			used[k]++
		}
		for _, row := range rows {
			for _, d := range spec.Dimensions {
				if source.Value(row, d).Key() != cube.Value(r, d).Key() {
					return fmt.Errorf("%w: row %d lists a source row outside its %s group", ErrTraceMismatch, r, d)
				}
			}
		}
		for _, m := range spec.Metrics {
			values := collect(source, rows, m.Column)
			for _, a := range m.Aggregations {
				want, err := a.Apply(values)
				if err != nil {
					return err
				}
				name := ColumnName(m.Column, a.String())
				if got := cube.Value(r, name); !sameCell(want, got) {
					return fmt.Errorf("%w: row %d %s is %s, re-aggregation gives %s", ErrTraceMismatch, r, name, got, want)
				}
			}
		}
	}
	return nil
}

func sameCell(a, b dataset.Value) bool {
	af, aok := a.Float64()
	bf, bok := b.Float64()
	if aok && bok {
		return af == bf || math.Abs(af-bf) <= 1e-9*math.Max(math.Abs(af), math.Abs(bf))
	}
	return a.Equal(b)
}
