package scrub

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/spf13/cast"
)

var reNonCurrency = regexp.MustCompile(`[^0-9.]`)

// coerce maps every value of column through fn. Values fn rejects become null
// and are counted.
func (s *Scrubber) coerce(op, column string, fn func(dataset.Value) (dataset.Value, bool)) (int, error) {
	invalid := 0
	ds, err := s.ds.MapColumn(column, func(v dataset.Value) dataset.Value {
		if v.IsNull() {
			return v
		}
		out, ok := fn(v)
		if !ok {
			invalid++
			return dataset.Null()
		}
		return out
	})
	if err != nil {
		return 0, fmt.Errorf("scrub: %s: %w", op, err)
	}
	s.ds = ds
	if invalid > 0 {
		s.log.Debug("scrub: "+op+" nulled unparseable values", "column", column, "invalid", invalid)
	}
	return invalid, nil
}

// CleanDate parses column with layout. Values that do not parse become null and
// are counted; a single bad value never fails the call.
func (s *Scrubber) CleanDate(column, layout string) (int, error) {
	return s.coerce("clean date", column, func(v dataset.Value) (dataset.Value, bool) {
		if v.Kind() == dataset.KindDate {
			return v, true
		}
		raw, ok := v.Text()
		if !ok {
			raw = v.String()
		}
		t, err := time.Parse(layout, strings.TrimSpace(raw))
		if err != nil {
			return v, false
		}
		return dataset.Date(t), true
	})
}

// CleanCurrency strips every character that is not a digit or decimal point
// and parses the rest; an empty remainder is zero. Numeric values pass through.
func (s *Scrubber) CleanCurrency(column string) (int, error) {
	return s.coerce("clean currency", column, func(v dataset.Value) (dataset.Value, bool) {
		if _, ok := v.Number(); ok {
			return v, true
		}
		raw, ok := v.Text()
		if !ok {
			return v, false
		}
		digits := reNonCurrency.ReplaceAllString(raw, "")
		if digits == "" {
			return dataset.Float(0), true
		}
		d, err := decimal.NewFromString(digits)
		if err != nil {
			return v, false
		}
		return dataset.Float(d.InexactFloat64()), true
	})
}

// CoerceInt converts column to integers. Non-integral numbers fail.
func (s *Scrubber) CoerceInt(column string) (int, error) {
	return s.coerce("coerce int", column, func(v dataset.Value) (dataset.Value, bool) {
		if _, ok := v.Int64(); ok {
			return v, true
		}
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) || !fitsInt64(f) {
			return v, false
		}
		return dataset.Int(int64(f)), true
	})
}

func (s *Scrubber) CoerceFloat(column string) (int, error) {
	return s.coerce("coerce float", column, func(v dataset.Value) (dataset.Value, bool) {
		f, ok := toFloat(v)
		if !ok {
			return v, false
		}
		return dataset.Float(f), true
	})
}

// fitsInt64 reports whether f converts to int64 without wrapping.
func fitsInt64(f float64) bool {
	return f >= -(1<<63) && f < 1<<63
}

func toFloat(v dataset.Value) (float64, bool) {
	if f, ok := v.Number(); ok {
		return f, true
	}
	raw, ok := v.Text()
	if !ok {
		return 0, false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
