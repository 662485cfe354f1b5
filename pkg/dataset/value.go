package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical rendering of date values.
const DateLayout = "2006-01-02"

type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindDate
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is an immutable typed scalar held in a dataset cell. The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
	list []Value
}

func Null() Value { return Value{} }

func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a float value. NaN is treated as missing.
func Float(v float64) Value {
	if math.IsNaN(v) {
		return Value{}
	}
	return Value{kind: KindFloat, f: v}
}

func Text(v string) Value { return Value{kind: KindText, s: v} }

// Date truncates t to its calendar day in UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func List(vs ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), vs...)}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Int64() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) Float64() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// Number returns the numeric value of an int or float.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.s, true
}

func (v Value) Time() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.t, true
}

func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	return append([]Value(nil), v.list...)
}

// Key returns a grouping key. Keys of equal values are equal, null is only equal
// to null, and integral floats share keys with the matching ints.
func (v Value) Key() string {
	switch v.kind {
	case KindNull:
		return "\x00"
	case KindInt:
		return "n:" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<53 {
			return "n:" + strconv.FormatInt(int64(v.f), 10)
		}
		return "n:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return "s:" + v.s
	case KindDate:
		return "d:" + v.t.Format(DateLayout)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.Key()
		}
		return "l:[" + strings.Join(parts, "\x1f") + "]"
	default:
		return ""
	}
}

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool { return v.kind == o.kind && v.Key() == o.Key() }

// Compare orders two values of the same family. Numbers compare numerically,
// text lexically and dates chronologically. ok is false for mixed or null operands.
func Compare(a, b Value) (c int, ok bool) {
	if an, aok := a.Number(); aok {
		bn, bok := b.Number()
		if !bok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}
	switch {
	case a.kind == KindText && b.kind == KindText:
		return strings.Compare(a.s, b.s), true
	case a.kind == KindDate && b.kind == KindDate:
		return a.t.Compare(b.t), true
	}
	return 0, false
}

// String renders the value the way it is written to tabular output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindText:
		return v.s
	case KindDate:
		return v.t.Format(DateLayout)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			if e.kind == KindText {
				parts[i] = "'" + strings.ReplaceAll(e.s, "'", `\'`) + "'"
				continue
			}
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return ""
	}
}

// Any returns the value as a database/sql argument.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindDate:
		return v.t
	case KindList:
		return v.String()
	default:
		return nil
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) || strings.ContainsAny(s, ".eE") {
		return s
	}
	return s + ".0"
}
