package task

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dlovans/surveytask/pkg/survey"
)

// Policy decides the answer synthesized when a supplied answer is missing or
// invalid for the step's format.
type Policy string

const (
	PolicyFirst   Policy = "first"
	PolicyLast    Policy = "last"
	PolicyDefault Policy = "defaultValue"
	PolicySkip    Policy = "skip"
)

// DefaultWalkLimit bounds Walk when no limit is given.
const DefaultWalkLimit = 1000

// ParsePolicy maps a policy name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(name); p {
	case PolicyFirst, PolicyLast, PolicyDefault, PolicySkip:
		return p, nil
	case "":
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown answer policy '%s' (want first, last, defaultValue or skip)", name)
}

// Synthesizer builds step results from a flat answer map, as if a participant
// had answered.
type Synthesizer struct {
	Clock  func() time.Time
	Logger *zap.Logger
}

// NewSynthesizer creates a Synthesizer using the wall clock.
func NewSynthesizer(logger *zap.Logger) *Synthesizer {
	return &Synthesizer{Clock: time.Now, Logger: nopIfNil(logger)}
}

func (s *Synthesizer) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// Synthesize builds the result of one step. Answers are looked up by the step's
// identifier, then by progressively shorter dotted suffixes of it.
func (s *Synthesizer) Synthesize(step *Step, answers map[string]any, policy Policy) *StepResult {
	now := s.now()
	r := &StepResult{StepIdentifier: step.Identifier, StartDate: now, EndDate: now, Synthetic: true}

	switch step.Kind {
	case KindQuestion:
		raw, has := lookupAnswer(answers, step.Identifier)
		r.Format = formatKind(step)
		r.Answer = s.answer(step, raw, has, policy)
	case KindForm:
		group, _ := lookupAnswer(answers, step.Identifier)
		fieldAnswers, _ := group.(map[string]any)
		r.Fields = make(map[string]*StepResult, len(step.Fields))
		for _, field := range step.Fields {
			raw, has := fieldAnswers[field.Identifier]
			if !has {
				raw, has = lookupAnswer(answers, step.Identifier+"."+field.Identifier)
			}
			r.Fields[field.Identifier] = &StepResult{
				StepIdentifier: field.Identifier,
				Format:         formatKind(field),
				Answer:         s.answer(field, raw, has, policy),
				StartDate:      now,
				EndDate:        now,
				Synthetic:      true,
			}
		}
	case KindSubtask:
		// Inner results keep their qualified identifiers and are keyed by the
		// remainder, so Answers flattens them back to "outer.inner".
		inner := s.SynthesizeLeaves(step, answers, policy)
		r.Fields = make(map[string]*StepResult, len(inner))
		for _, ir := range inner {
			r.Fields[strings.TrimPrefix(ir.StepIdentifier, step.Identifier+".")] = ir
		}
	}
	return r
}

// SynthesizeLeaves returns one result per leaf step under step, identified as
// "outer.inner". A step that is not a subtask is its own single leaf.
func (s *Synthesizer) SynthesizeLeaves(step *Step, answers map[string]any, policy Policy) []*StepResult {
	if step.Kind != KindSubtask || step.Subtask == nil {
		return []*StepResult{s.Synthesize(step, answers, policy)}
	}
	ids := step.Subtask.Identifiers()
	out := make([]*StepResult, 0, len(ids))
	for _, id := range ids {
		if inner := step.Subtask.Step(id); inner != nil {
			out = append(out, s.Synthesize(inner.withIdentifier(step.Identifier+"."+id), answers, policy))
		}
	}
	return out
}

// SynthesizeTask builds results for every leaf step of t in declaration order,
// ignoring navigation.
func (s *Synthesizer) SynthesizeTask(t *Task, answers map[string]any, policy Policy) *TaskResultSet {
	rs := NewResultSet(t.Identifier)
	for _, id := range t.Identifiers() {
		if step := t.Step(id); step != nil {
			rs.Add(s.Synthesize(step, answers, policy))
		}
	}
	return rs
}

// Replay builds results only for the leaf steps the answer map mentions, so
// unanswered steps stay absent instead of carrying nil answers.
func (s *Synthesizer) Replay(t *Task, answers map[string]any, policy Policy) *TaskResultSet {
	rs := NewResultSet(t.Identifier)
	for _, id := range t.Identifiers() {
		if step := t.Step(id); step != nil && answered(step, answers) {
			rs.Add(s.Synthesize(step, answers, policy))
		}
	}
	return rs
}

func answered(step *Step, answers map[string]any) bool {
	if _, ok := lookupAnswer(answers, step.Identifier); ok {
		return true
	}
	for _, field := range step.Fields {
		if _, ok := lookupAnswer(answers, step.Identifier+"."+field.Identifier); ok {
			return true
		}
	}
	return false
}

// Run is the outcome of fast-forwarding through a task.
type Run struct {
	Path      []string       `json:"path"`
	Results   *TaskResultSet `json:"-"`
	Truncated bool           `json:"truncated,omitempty"`
	Warnings  []Warning      `json:"warnings,omitempty"`
}

// Walk drives nav from the first step, synthesizing a result for every step it
// lands on, until the task ends or limit steps have been visited.
func (s *Synthesizer) Walk(nav *Navigator, answers map[string]any, policy Policy, limit int) *Run {
	if limit <= 0 {
		limit = DefaultWalkLimit
	}
	run := &Run{Results: NewResultSet(nav.Task().Identifier)}

	current := ""
	for {
		next := nav.StepAfter(current, run.Results)
		if next == nil {
			break
		}
		if len(run.Path) >= limit {
			w := Warning{
				Code:       WarnWalkLimit,
				Identifier: next.Identifier,
				Message:    fmt.Sprintf("walk stopped after %d steps", limit),
			}
			run.Truncated = true
			run.Warnings = append(run.Warnings, w)
			logWarnings(nopIfNil(s.Logger), []Warning{w})
			break
		}
		run.Path = append(run.Path, next.Identifier)
		run.Results.Add(s.Synthesize(next, answers, policy))
		current = next.Identifier
	}
	return run
}

func formatKind(s *Step) FormatKind {
	if s.Format == nil {
		return ""
	}
	return s.Format.Kind
}

// lookupAnswer tries "a.b.c", then "b.c", then "c".
func lookupAnswer(answers map[string]any, id string) (any, bool) {
	for key := id; key != ""; {
		if v, ok := answers[key]; ok {
			return v, true
		}
		dot := strings.Index(key, ".")
		if dot < 0 {
			break
		}
		key = key[dot+1:]
	}
	return nil, false
}

// answer validates raw against the step's format, falling back to policy.
func (s *Synthesizer) answer(step *Step, raw any, has bool, policy Policy) any {
	f := step.Format
	if f == nil {
		return nil
	}
	if f.Kind == FormatBoolean {
		// Non-boolean input always becomes false; the policy doesn't apply.
		b, _ := raw.(bool)
		return b
	}

	var v any
	var ok bool
	switch f.Kind {
	case FormatSingleChoice, FormatMultipleChoice:
		v, ok = choiceAnswer(f, raw)
	case FormatScale:
		v, ok = scaleAnswer(f.Scale, raw)
	case FormatText:
		v, ok = textAnswer(f.Text, raw)
	case FormatDate:
		v, ok = dateAnswer(f.Date, raw)
	}
	if ok {
		return v
	}
	if has && raw != nil {
		nopIfNil(s.Logger).Debug("answer rejected, applying policy",
			zap.String("identifier", step.Identifier),
			zap.Any("answer", raw),
			zap.String("policy", string(policy)),
		)
	}
	return defaultAnswer(f, policy)
}

func defaultAnswer(f *AnswerFormat, policy Policy) any {
	switch f.Kind {
	case FormatSingleChoice, FormatMultipleChoice:
		if len(f.Choices) == 0 {
			return nil
		}
		switch policy {
		case PolicyFirst:
			return []any{f.Choices[0].Value}
		case PolicyLast:
			return []any{f.Choices[len(f.Choices)-1].Value}
		}
	case FormatScale:
		if f.Scale == nil {
			return nil
		}
		switch policy {
		case PolicyFirst:
			return f.Scale.Min
		case PolicyLast:
			return f.Scale.Max
		case PolicyDefault:
			if f.Scale.Default != nil {
				return *f.Scale.Default
			}
		}
	case FormatDate:
		if f.Date == nil {
			return nil
		}
		switch {
		case policy == PolicyFirst && f.Date.Min != nil:
			return DateOf(*f.Date.Min)
		case policy == PolicyLast && f.Date.Max != nil:
			return DateOf(*f.Date.Max)
		}
	}
	return nil
}

// choiceAnswer accepts a scalar or list whose every element is a declared value.
// Numeric answers match declared numbers of any type; the declared value is stored.
func choiceAnswer(f *AnswerFormat, raw any) (any, bool) {
	if raw == nil {
		return nil, false
	}
	given, isList := asList(raw)
	if !isList {
		given = []any{raw}
	}
	if len(given) == 0 {
		return nil, false
	}
	if f.Kind == FormatSingleChoice && len(given) != 1 {
		return nil, false
	}

	out := make([]any, 0, len(given))
	exclusive := false
	for _, g := range given {
		c, ok := declaredChoice(f.Choices, g)
		if !ok {
			return nil, false
		}
		exclusive = exclusive || c.Exclusive
		out = append(out, c.Value)
	}
	if exclusive && len(out) > 1 {
		return nil, false
	}
	return out, true
}

func declaredChoice(choices []Choice, v any) (Choice, bool) {
	for _, c := range choices {
		if compareEqual(c.Value, v) {
			return c, true
		}
	}
	return Choice{}, false
}

func scaleAnswer(r *ScaleRange, raw any) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := survey.Integer(raw)
	if !ok || v < r.Min || v > r.Max {
		return nil, false
	}
	if r.Step > 0 && (v-r.Min)%r.Step != 0 {
		return nil, false
	}
	return v, true
}

func textAnswer(r *TextRule, raw any) (any, bool) {
	v, ok := raw.(string)
	if !ok {
		return nil, false
	}
	if r != nil && r.MaxLength > 0 && utf8.RuneCountInString(v) > r.MaxLength {
		return nil, false
	}
	return v, true
}

func dateAnswer(r *DateRange, raw any) (any, bool) {
	var d DateComponents
	switch v := raw.(type) {
	case DateComponents:
		d = v
	default:
		t, ok := survey.Date(raw)
		if !ok {
			return nil, false
		}
		d = DateOf(t)
	}
	if r != nil {
		if r.Min != nil && d.before(DateOf(*r.Min)) {
			return nil, false
		}
		if r.Max != nil && DateOf(*r.Max).before(d) {
			return nil, false
		}
	}
	return d, true
}

func (d DateComponents) before(o DateComponents) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}
