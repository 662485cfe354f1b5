package cube

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smartsales/smartsales/pkg/dataset"
)

var (
	ErrColumnCollision    = errors.New("output column collision")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrUnknownAggregation = errors.New("unknown aggregation")
	ErrNonNumeric         = errors.New("non-numeric values")
	ErrInvalidSpec        = errors.New("invalid cube spec")
	ErrTraceMismatch      = errors.New("traceability mismatch")
	ErrMissingColumn      = dataset.ErrMissingColumn
)

// Metric aggregates one source column with one or more functions.
type Metric struct {
	Column       string
	Aggregations []Aggregation
}

func (m Metric) OutputNames() []string {
	out := make([]string, len(m.Aggregations))
	for i, a := range m.Aggregations {
		out[i] = ColumnName(m.Column, a.String())
	}
	return out
}

type Op int

const (
	Add Op = iota + 1
	Sub
	Mul
	Div
)

func (o Op) String() string {
	switch o {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "+":
		return Add, nil
	case "sub", "-":
		return Sub, nil
	case "mul", "*":
		return Mul, nil
	case "div", "/":
		return Div, nil
	}
	return 0, fmt.Errorf("%w: unknown operator %q", ErrInvalidSpec, s)
}

// ZeroPolicy decides what a division by zero produces.
type ZeroPolicy int

const (
	// ZeroFail aborts the build with ErrDivisionByZero.
	ZeroFail ZeroPolicy = iota
	// ZeroNull emits a null cell.
	ZeroNull
)

func ParseZeroPolicy(s string) (ZeroPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return ZeroFail, nil
	case "null":
		return ZeroNull, nil
	}
	return 0, fmt.Errorf("%w: unknown division by zero policy %q", ErrInvalidSpec, s)
}

// Derived computes Name = Left Op Right from columns already in the cube.
type Derived struct {
	Name   string
	Op     Op
	Left   string
	Right  string
	OnZero ZeroPolicy
}

type Spec struct {
	Dimensions []string
	Metrics    []Metric
	// IDColumn identifies source rows; its values form the traceability column.
	IDColumn string
	// TraceColumn defaults to IDColumn + "s".
	TraceColumn string
	Derived     []Derived
}

// Validate fills defaults and rejects specs whose output columns would collide
// or whose derived metrics reference unknown columns.
func (s *Spec) Validate() error {
	if len(s.Dimensions) == 0 {
		return fmt.Errorf("%w: at least one dimension is required", ErrInvalidSpec)
	}
	if s.IDColumn == "" {
		return fmt.Errorf("%w: id column is required", ErrInvalidSpec)
	}
	if s.TraceColumn == "" {
		s.TraceColumn = s.IDColumn + "s"
	}

	owner := make(map[string]string)
	claim := func(name, by string) error {
		if name == "" {
			return fmt.Errorf("%w: empty output column from %s", ErrInvalidSpec, by)
		}
		if prev, ok := owner[name]; ok {
			return fmt.Errorf("%w: %q produced by both %s and %s", ErrColumnCollision, name, prev, by)
		}
		owner[name] = by
		return nil
	}

	for _, d := range s.Dimensions {
		if err := claim(d, "dimension "+d); err != nil {
			return err
		}
	}
	for _, m := range s.Metrics {
		if len(m.Aggregations) == 0 {
			return fmt.Errorf("%w: metric %q has no aggregations", ErrInvalidSpec, m.Column)
		}
		for i, a := range m.Aggregations {
			if _, ok := aggregationNames[a]; !ok {
				return fmt.Errorf("%w: %d on %q", ErrUnknownAggregation, int(a), m.Column)
			}
			if err := claim(m.OutputNames()[i], fmt.Sprintf("%s(%s)", a, m.Column)); err != nil {
				return err
			}
		}
	}
	if err := claim(s.TraceColumn, "traceability column"); err != nil {
		return err
	}
	for _, d := range s.Derived {
		if d.Op < Add || d.Op > Div {
			return fmt.Errorf("%w: derived %q has no operator", ErrInvalidSpec, d.Name)
		}
		for _, operand := range []string{d.Left, d.Right} {
			if _, ok := owner[operand]; !ok || operand == s.TraceColumn {
				return fmt.Errorf("%w: derived %q references unknown column %q", ErrInvalidSpec, d.Name, operand)
			}
		}
		if err := claim(d.Name, "derived "+d.Name); err != nil {
			return err
		}
	}
	return nil
}

// Columns returns the output column order: dimensions, aggregates, the
// traceability column, then derived metrics.
func (s Spec) Columns() []string {
	var out []string
	out = append(out, s.Dimensions...)
	for _, m := range s.Metrics {
		out = append(out, m.OutputNames()...)
	}
	trace := s.TraceColumn
	if trace == "" {
		trace = s.IDColumn + "s"
	}
	out = append(out, trace)
	for _, d := range s.Derived {
		out = append(out, d.Name)
	}
	return out
}
