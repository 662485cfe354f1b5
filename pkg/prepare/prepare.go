// Package prepare turns raw entity extracts into datasets shaped like the
// warehouse tables.
//
// Every entity runs the same fixed sequence of steps (see Steps). Preparers keep
// no state between calls, so entities can be prepared in any order and a row
// discarded for one entity never affects another.
package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/smartsales/smartsales/pkg/dataset"
	"github.com/smartsales/smartsales/pkg/metrics"
	"github.com/smartsales/smartsales/pkg/scrub"
)

type Preparer struct {
	log    *slog.Logger
	entity Entity
}

func New(log *slog.Logger, entity Entity) *Preparer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Preparer{log: log.With("entity", entity.Name()), entity: entity}
}

func (p *Preparer) Entity() Entity { return p.entity }

// Prepare runs every step over raw and returns the conformed dataset with a
// per-step report. Errors are fatal: schema conflicts and a missing natural key.
func (p *Preparer) Prepare(ctx context.Context, raw *dataset.Dataset) (*dataset.Dataset, *Report, error) {
	e := p.entity
	s := scrub.New(p.log, raw, scrub.WithCasing(e.Casing))
	report := newReport(e.Name())

	p.log.Info("prepare: started", "rows", raw.Len(), "columns", raw.Width())

	for _, step := range Steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("prepare %s: %w", e.Name(), err)
		}
		before := s.Len()
		if err := p.run(step, s, report); err != nil {
			return nil, nil, fmt.Errorf("prepare %s: %s: %w", e.Name(), step, err)
		}
		res := StepResult{Step: step, Before: before, After: s.Len()}
		report.Steps = append(report.Steps, res)
		if res.Removed() > 0 {
			metrics.PrepareRowsRemoved.WithLabelValues(e.Name(), string(step)).Add(float64(res.Removed()))
		}
		p.log.Info("prepare: step completed", "step", step, "before", res.Before, "after", res.After, "removed", res.Removed())
	}

	for col, n := range report.ParseFailures {
		metrics.PrepareParseFailures.WithLabelValues(e.Name(), col).Add(float64(n))
	}
	metrics.PrepareRowsOutput.WithLabelValues(e.Name()).Set(float64(s.Len()))
	for _, issue := range report.Issues() {
		p.log.Warn("prepare: recovered issue", "issue", issue.Error())
	}
	return s.Dataset(), report, nil
}

func (p *Preparer) run(step Step, s *scrub.Scrubber, report *Report) error {
	e := p.entity
	switch step {
	case StepNormalize:
		if err := s.NormalizeColumnNames(); err != nil {
			return err
		}
		s.FormatStringColumns()

	case StepDeduplicate:
		key, ok := resolve(s, e, e.Key)
		if !ok {
			return fmt.Errorf("%w: natural key %q", scrub.ErrMissingColumn, e.Key)
		}
		if _, err := s.RemoveDuplicates(key); err != nil {
			return err
		}

	case StepFillMissing:
		fill := make(map[string]dataset.Value, len(e.Fill))
		for col, v := range e.Fill {
			if actual, ok := resolve(s, e, col); ok {
				fill[actual] = v
			}
		}
		report.Filled = s.HandleMissingData(fill)

	case StepCoerce:
		type coercion struct {
			columns []string
			fn      func(string) (int, error)
		}
		for _, c := range []coercion{
			{e.Currency, s.CleanCurrency},
			{e.Ints, s.CoerceInt},
			{e.Floats, s.CoerceFloat},
		} {
			for _, col := range c.columns {
				actual, ok := resolve(s, e, col)
				if !ok {
					continue
				}
				n, err := c.fn(actual)
				if err != nil {
					return err
				}
				report.ParseFailures[col] += n
			}
		}
		for _, col := range sortedDateColumns(e.Dates) {
			actual, ok := resolve(s, e, col)
			if !ok {
				continue
			}
			n, err := s.CleanDate(actual, e.Dates[col])
			if err != nil {
				return err
			}
			report.ParseFailures[col] += n
		}

	case StepValidate:
		actual := make([]string, len(e.Rules))
		for i, r := range e.Rules {
			actual[i], _ = resolve(s, e, r.Column)
		}
		s.FilterRows(func(rec dataset.Record) bool {
			for i, r := range e.Rules {
				if !r.Valid(rec.Get(actual[i])) {
					report.Violations[r.Name]++
					return false
				}
			}
			return true
		})

	case StepConform:
		renames := make(map[string]string)
		for canonical, aliases := range e.Aliases {
			if s.Has(canonical) {
				continue
			}
			for _, a := range aliases {
				if s.Has(a) {
					renames[a] = canonical
					break
				}
			}
		}
		if err := s.RenameColumns(renames); err != nil {
			return err
		}
		dropped, err := s.Conform(e.Table.ColumnNames())
		if err != nil {
			return err
		}
		report.Dropped = dropped
		if len(dropped) > 0 {
			p.log.Warn("prepare: dropped columns outside the warehouse schema", "columns", dropped)
		}
	}
	return nil
}

// resolve finds the column currently holding canonical, trying its aliases.
func resolve(s *scrub.Scrubber, e Entity, canonical string) (string, bool) {
	if s.Has(canonical) {
		return canonical, true
	}
	for _, a := range e.Aliases[canonical] {
		if s.Has(a) {
			return a, true
		}
	}
	return "", false
}

func sortedDateColumns(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
