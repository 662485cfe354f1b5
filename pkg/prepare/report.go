package prepare

import (
	"errors"
	"fmt"
	"sort"

	"github.com/smartsales/smartsales/pkg/scrub"
)

// ErrInvalidRow marks rows excluded by a validity rule. It is never returned
// from Prepare; it only appears in Report.Issues.
var ErrInvalidRow = errors.New("invalid row")

type Step string

const (
	StepNormalize   Step = "normalize"
	StepDeduplicate Step = "deduplicate"
	StepFillMissing Step = "fill_missing"
	StepCoerce      Step = "coerce"
	StepValidate    Step = "validate"
	StepConform     Step = "conform"
)

// Steps is the fixed order every entity runs through.
var Steps = []Step{StepNormalize, StepDeduplicate, StepFillMissing, StepCoerce, StepValidate, StepConform}

type StepResult struct {
	Step   Step
	Before int
	After  int
}

func (r StepResult) Removed() int { return r.Before - r.After }

type Report struct {
	Entity        string
	Steps         []StepResult
	Filled        int
	ParseFailures map[string]int
	Violations    map[string]int
	Dropped       []string
}

func newReport(entity string) *Report {
	return &Report{
		Entity:        entity,
		ParseFailures: make(map[string]int),
		Violations:    make(map[string]int),
	}
}

// Removed returns the rows removed by step, or 0 if it did not run.
func (r *Report) Removed(step Step) int {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Removed()
		}
	}
	return 0
}

func (r *Report) TotalRemoved() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Removed()
	}
	return n
}

func (r *Report) Input() int {
	if len(r.Steps) == 0 {
		return 0
	}
	return r.Steps[0].Before
}

func (r *Report) Output() int {
	if len(r.Steps) == 0 {
		return 0
	}
	return r.Steps[len(r.Steps)-1].After
}

// Issues returns the locally recovered problems as errors, sorted for stable output.
func (r *Report) Issues() []error {
	var out []error
	for _, col := range sortedKeys(r.ParseFailures) {
		out = append(out, fmt.Errorf("%s.%s: %w: %d values nulled", r.Entity, col, scrub.ErrParseFailure, r.ParseFailures[col]))
	}
	for _, rule := range sortedKeys(r.Violations) {
		out = append(out, fmt.Errorf("%s: %w: %d rows failed %q", r.Entity, ErrInvalidRow, r.Violations[rule], rule))
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k, n := range m {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
