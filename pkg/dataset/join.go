package dataset

import "fmt"

// LeftJoin appends columns from right to every row of left, matching on key.
// The first right row per key wins; unmatched rows get nulls. Null keys never match.
func LeftJoin(left, right *Dataset, key string, columns ...string) (*Dataset, error) {
	lk, ok := left.Index(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q in left dataset", ErrMissingColumn, key)
	}
	rk, ok := right.Index(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q in right dataset", ErrMissingColumn, key)
	}
	ridx := make([]int, len(columns))
	for k, c := range columns {
		j, ok := right.Index(c)
		if !ok {
			return nil, fmt.Errorf("%w: %q in right dataset", ErrMissingColumn, c)
		}
		if left.Has(c) {
			return nil, fmt.Errorf("%w: %q in both datasets", ErrDuplicateColumn, c)
		}
		ridx[k] = j
	}

	lookup := make(map[string][]Value, right.Len())
	for _, row := range right.rows {
		if row[rk].IsNull() {
			continue
		}
		k := row[rk].Key()
		if _, seen := lookup[k]; !seen {
			lookup[k] = row
		}
	}

	out := make([][]Value, len(left.rows))
	for i, row := range left.rows {
		next := append(make([]Value, 0, len(row)+len(columns)), row...)
		match, found := lookup[row[lk].Key()]
		for _, j := range ridx {
			if found && !row[lk].IsNull() {
				next = append(next, match[j])
			} else {
				next = append(next, Null())
			}
		}
		out[i] = next
	}
	return New(append(left.Columns(), columns...), out...)
}
