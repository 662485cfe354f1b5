package cube

import (
	"fmt"
	"math"
	"strings"

	"github.com/smartsales/smartsales/pkg/dataset"
)

// Aggregation is one of the supported aggregate functions.
type Aggregation int

const (
	Sum Aggregation = iota + 1
	Count
	Mean
	Min
	Max
	First
	Last
	NUnique
)

var aggregationNames = map[Aggregation]string{
	Sum:     "sum",
	Count:   "count",
	Mean:    "mean",
	Min:     "min",
	Max:     "max",
	First:   "first",
	Last:    "last",
	NUnique: "nunique",
}

func (a Aggregation) String() string {
	if s, ok := aggregationNames[a]; ok {
		return s
	}
	return fmt.Sprintf("aggregation(%d)", int(a))
}

func ParseAggregation(s string) (Aggregation, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "avg", "average":
		return Mean, nil
	}
	for a, n := range aggregationNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAggregation, s)
}

// Apply aggregates values. Nulls are skipped by every function; sum of no
// values is 0, count and nunique of no values are 0, the rest are null. An
// integer sum that would overflow int64 is returned as a float.
func (a Aggregation) Apply(values []dataset.Value) (dataset.Value, error) {
	present := make([]dataset.Value, 0, len(values))
	for _, v := range values {
		if !v.IsNull() {
			present = append(present, v)
		}
	}

	switch a {
	case Count:
		return dataset.Int(int64(len(present))), nil

	case NUnique:
		seen := make(map[string]struct{}, len(present))
		for _, v := range present {
			seen[v.Key()] = struct{}{}
		}
		return dataset.Int(int64(len(seen))), nil

	case First:
		if len(present) == 0 {
			return dataset.Null(), nil
		}
		return present[0], nil

	case Last:
		if len(present) == 0 {
			return dataset.Null(), nil
		}
		return present[len(present)-1], nil

	case Sum, Mean:
		var isum int64
		var fsum float64
		floats := false
		for _, v := range present {
			if i, ok := v.Int64(); ok {
				var fits bool
				if isum, fits = addInt64(isum, i); !fits {
					floats = true
				}
				fsum += float64(i)
				continue
			}
			f, ok := v.Float64()
			if !ok {
				return dataset.Null(), fmt.Errorf("%w: %s over %s value", ErrNonNumeric, a, v.Kind())
			}
			floats = true
			fsum += f
		}
		if a == Mean {
			if len(present) == 0 {
				return dataset.Null(), nil
			}
			return dataset.Float(fsum / float64(len(present))), nil
		}
		if floats {
			return dataset.Float(fsum), nil
		}
		return dataset.Int(isum), nil

	case Min, Max:
		if len(present) == 0 {
			return dataset.Null(), nil
		}
		best := present[0]
		for _, v := range present[1:] {
			c, ok := dataset.Compare(v, best)
			if !ok {
				return dataset.Null(), fmt.Errorf("%w: %s over mixed %s and %s values", ErrNonNumeric, a, v.Kind(), best.Kind())
			}
			if (a == Min && c < 0) || (a == Max && c > 0) {
				best = v
			}
		}
		return best, nil
	}
	return dataset.Null(), fmt.Errorf("%w: %s", ErrUnknownAggregation, a)
}

// addInt64, subInt64 and mulInt64 report false when the result wraps.
func addInt64(a, b int64) (int64, bool) {
	s := a + b
	return s, (s > a) == (b > 0)
}

func subInt64(a, b int64) (int64, bool) {
	s := a - b
	return s, (s < a) == (b > 0)
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return p, false
	}
	return p, p/b == a
}

// ColumnName is the output column for column aggregated by function:
// "{column}_{function}" with trailing separators removed.
func ColumnName(column, function string) string {
	return strings.TrimRight(column+"_"+function, "_")
}
