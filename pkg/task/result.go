package task

import (
	"fmt"
	"strings"
	"time"
)

// DateComponents is the answer shape of a date question.
type DateComponents struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// DateOf extracts the calendar date of t.
func DateOf(t time.Time) DateComponents {
	y, m, d := t.Date()
	return DateComponents{Year: y, Month: int(m), Day: d}
}

func (d DateComponents) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// StepResult is the answer recorded for one step.
//
// Answer is format-dependent: bool for boolean questions, []any for choice
// questions (always boxed, even for single choice), int for scales, string for
// text and DateComponents for dates. Forms keep per-field results in Fields.
// A nil Answer means the step was visited but not answered.
type StepResult struct {
	StepIdentifier string                 `json:"stepIdentifier"`
	Format         FormatKind             `json:"format,omitempty"`
	Answer         any                    `json:"answer,omitempty"`
	Fields         map[string]*StepResult `json:"fields,omitempty"`
	StartDate      time.Time              `json:"startDate"`
	EndDate        time.Time              `json:"endDate"`
	Synthetic      bool                   `json:"synthetic,omitempty"`
}

// Field returns the result of a form field.
func (r *StepResult) Field(id string) *StepResult {
	if r == nil {
		return nil
	}
	return r.Fields[id]
}

// TaskResultSet is the ordered collection of results for one run.
// Additional holds prior result sets, consulted after this one (reconsent, resume).
type TaskResultSet struct {
	Identifier string
	Additional []*TaskResultSet

	results []*StepResult
}

// NewResultSet creates an empty result set.
func NewResultSet(identifier string, additional ...*TaskResultSet) *TaskResultSet {
	return &TaskResultSet{Identifier: identifier, Additional: additional}
}

// Add records a result. A result for an identifier already present replaces the
// old one and moves to the end, matching a participant going back and re-answering.
func (rs *TaskResultSet) Add(r *StepResult) {
	if r == nil {
		return
	}
	for i, existing := range rs.results {
		if existing.StepIdentifier == r.StepIdentifier {
			rs.results = append(rs.results[:i], rs.results[i+1:]...)
			break
		}
	}
	rs.results = append(rs.results, r)
}

// Results returns the results in the order they were recorded.
func (rs *TaskResultSet) Results() []*StepResult {
	if rs == nil {
		return nil
	}
	return append([]*StepResult(nil), rs.results...)
}

// Len returns the number of results in this set, excluding additional sets.
func (rs *TaskResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.results)
}

// Lookup returns the result recorded under exactly id, searching additional sets last.
func (rs *TaskResultSet) Lookup(id string) *StepResult {
	if rs == nil || id == "" {
		return nil
	}
	for _, r := range rs.results {
		if r.StepIdentifier == id {
			return r
		}
	}
	for _, extra := range rs.Additional {
		if r := extra.Lookup(id); r != nil {
			return r
		}
	}
	return nil
}

// Result resolves either a fully-qualified identifier or the short identifier of
// a step nested in a subtask ("outer.inner" can be found as "inner").
func (rs *TaskResultSet) Result(id string) *StepResult {
	if r := rs.Lookup(id); r != nil {
		return r
	}
	if rs == nil || id == "" {
		return nil
	}
	suffix := "." + id
	for _, r := range rs.results {
		if strings.HasSuffix(r.StepIdentifier, suffix) {
			return r
		}
	}
	for _, extra := range rs.Additional {
		if r := extra.Result(id); r != nil {
			return r
		}
	}
	return nil
}

// Answers flattens the set into identifier -> answer. Form fields appear as
// "form.field". Later sets do not override this one.
func (rs *TaskResultSet) Answers() map[string]any {
	out := make(map[string]any)
	if rs == nil {
		return out
	}
	for i := len(rs.Additional) - 1; i >= 0; i-- {
		for k, v := range rs.Additional[i].Answers() {
			out[k] = v
		}
	}
	for _, r := range rs.results {
		if r.Answer != nil {
			out[r.StepIdentifier] = r.Answer
		}
		for id, f := range r.Fields {
			if f.Answer != nil {
				out[r.StepIdentifier+"."+id] = f.Answer
			}
		}
	}
	return out
}
