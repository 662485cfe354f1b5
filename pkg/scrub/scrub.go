// Package scrub provides the cleaning operations applied to every raw extract.
//
// A Scrubber owns one dataset for its lifetime. Each operation derives a new
// dataset from the held one and swaps it in; nothing outside the Scrubber can
// observe or alias the intermediate values. All operations are idempotent.
package scrub

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/smartsales/smartsales/pkg/dataset"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	ErrSchemaConflict = errors.New("schema conflict")
	ErrParseFailure   = errors.New("parse failure")
	ErrMissingColumn  = dataset.ErrMissingColumn
)

// Casing is the rule FormatStringColumns applies to trimmed text.
type Casing int

const (
	CaseLower Casing = iota
	CaseUpper
	CaseTitle
	CasePreserve
)

type Option func(*Scrubber)

func WithCasing(c Casing) Option {
	return func(s *Scrubber) { s.casing = c }
}

type Scrubber struct {
	log    *slog.Logger
	ds     *dataset.Dataset
	casing Casing
}

// New takes a private copy of ds.
func New(log *slog.Logger, ds *dataset.Dataset, opts ...Option) *Scrubber {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Scrubber{log: log, ds: ds.Clone()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dataset returns a copy of the held dataset.
func (s *Scrubber) Dataset() *dataset.Dataset { return s.ds.Clone() }

func (s *Scrubber) Len() int { return s.ds.Len() }

func (s *Scrubber) Has(column string) bool { return s.ds.Has(column) }

// RemoveDuplicates keeps the first row of every distinct key tuple.
func (s *Scrubber) RemoveDuplicates(keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, fmt.Errorf("scrub: remove duplicates: no key columns")
	}
	for _, k := range keys {
		if !s.ds.Has(k) {
			return 0, fmt.Errorf("scrub: remove duplicates: %w: %q", ErrMissingColumn, k)
		}
	}
	seen := make(map[string]struct{}, s.ds.Len())
	before := s.ds.Len()
	s.ds = s.ds.Filter(func(_ int, rec dataset.Record) bool {
		var b strings.Builder
		for _, k := range keys {
			b.WriteString(rec.Get(k).Key())
			b.WriteByte(0x1e)
		}
		key := b.String()
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
	removed := before - s.ds.Len()
	s.log.Debug("scrub: removed duplicates", "keys", keys, "removed", removed)
	return removed, nil
}

// NormalizeColumnNames rewrites every column name with NormalizeName. On a
// collision the held dataset is left unchanged and ErrSchemaConflict is returned.
func (s *Scrubber) NormalizeColumnNames() error {
	cols := s.ds.Columns()
	next := make([]string, len(cols))
	owner := make(map[string]string, len(cols))
	for i, c := range cols {
		n := NormalizeName(c)
		if n == "" {
			return fmt.Errorf("scrub: %w: column %q normalizes to an empty name", ErrSchemaConflict, c)
		}
		if prev, ok := owner[n]; ok {
			return fmt.Errorf("scrub: %w: columns %q and %q both normalize to %q", ErrSchemaConflict, prev, c, n)
		}
		owner[n] = c
		next[i] = n
	}
	ds, err := s.ds.WithColumnNames(next)
	if err != nil {
		return err
	}
	s.ds = ds
	s.log.Debug("scrub: normalized column names", "columns", next)
	return nil
}

// NormalizeName lower-cases name, splits camelCase words and collapses every
// run of other characters into a single underscore.
func NormalizeName(name string) string {
	rs := []rune(strings.TrimSpace(name))
	var b strings.Builder
	sep := false
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			sep = true
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				sep = true
			}
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// FormatStringColumns trims text values and applies the configured casing.
func (s *Scrubber) FormatStringColumns() {
	var caser cases.Caser
	switch s.casing {
	case CaseUpper:
		caser = cases.Upper(language.Und)
	case CaseTitle:
		caser = cases.Title(language.English)
	case CasePreserve:
	default:
		caser = cases.Lower(language.Und)
	}
	format := func(v dataset.Value) dataset.Value {
		t, ok := v.Text()
		if !ok {
			return v
		}
		t = strings.TrimSpace(t)
		if s.casing != CasePreserve {
			t = caser.String(t)
		}
		return dataset.Text(t)
	}
	for _, c := range s.ds.Columns() {
		ds, err := s.ds.MapColumn(c, format)
		if err != nil {
			continue
		}
		s.ds = ds
	}
	s.log.Debug("scrub: formatted string columns", "casing", s.casing)
}

// HandleMissingData replaces nulls in each mapped column with its fill value.
// Columns not in fill keep their nulls. It returns the number of cells filled.
func (s *Scrubber) HandleMissingData(fill map[string]dataset.Value) int {
	filled := 0
	for _, c := range s.ds.Columns() {
		v, ok := fill[c]
		if !ok {
			continue
		}
		ds, err := s.ds.MapColumn(c, func(cur dataset.Value) dataset.Value {
			if cur.IsNull() {
				filled++
				return v
			}
			return cur
		})
		if err != nil {
			continue
		}
		s.ds = ds
	}
	s.log.Debug("scrub: handled missing data", "columns", len(fill), "filled", filled)
	return filled
}

// RenameColumns renames the columns named as keys. Keys with no matching column
// are ignored. Renaming onto another existing column is a schema conflict.
func (s *Scrubber) RenameColumns(mapping map[string]string) error {
	cols := s.ds.Columns()
	next := make([]string, len(cols))
	owner := make(map[string]string, len(cols))
	for i, c := range cols {
		n := c
		if to, ok := mapping[c]; ok && to != "" {
			n = to
		}
		if prev, ok := owner[n]; ok {
			return fmt.Errorf("scrub: %w: renaming %q and %q both yield %q", ErrSchemaConflict, prev, c, n)
		}
		owner[n] = c
		next[i] = n
	}
	ds, err := s.ds.WithColumnNames(next)
	if err != nil {
		return err
	}
	s.ds = ds
	s.log.Debug("scrub: renamed columns", "columns", next)
	return nil
}

// FilterRows drops the rows for which keep returns false.
func (s *Scrubber) FilterRows(keep func(dataset.Record) bool) int {
	before := s.ds.Len()
	s.ds = s.ds.Filter(func(_ int, rec dataset.Record) bool { return keep(rec) })
	return before - s.ds.Len()
}

// Conform projects the held dataset onto columns in order. Missing columns are
// added as nulls and any other column is dropped.
func (s *Scrubber) Conform(columns []string) ([]string, error) {
	var dropped []string
	want := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		want[c] = struct{}{}
	}
	for _, c := range s.ds.Columns() {
		if _, ok := want[c]; !ok {
			dropped = append(dropped, c)
		}
	}
	ds := s.ds
	for _, c := range columns {
		if ds.Has(c) {
			continue
		}
		var err error
		ds, err = ds.WithColumn(c, make([]dataset.Value, ds.Len()))
		if err != nil {
			return nil, err
		}
	}
	ds, err := ds.Select(columns...)
	if err != nil {
		return nil, err
	}
	s.ds = ds
	return dropped, nil
}
