package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestSynthesizer() *Synthesizer {
	return &Synthesizer{Clock: func() time.Time { return fixedNow }}
}

func questionStep(t *testing.T, src string) *Step {
	t.Helper()
	steps, _ := NewFactory(nil, nil, nil).Transform(decodeJSON(t, src), false)
	require.Len(t, steps, 1)
	return steps[0]
}

func TestParsePolicy(t *testing.T) {
	for _, name := range []string{"first", "last", "defaultValue", "skip"} {
		p, err := ParsePolicy(name)
		require.NoError(t, err)
		assert.Equal(t, Policy(name), p)
	}
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	_, err = ParsePolicy("random")
	assert.Error(t, err)
}

func TestSynthesizeChoiceRoundTrip(t *testing.T) {
	step := questionStep(t, `{"identifier": "color", "type": "singleChoiceText", "items": ["red", "green", "blue"]}`)
	s := newTestSynthesizer()

	r := s.Synthesize(step, map[string]any{"color": "red"}, PolicySkip)
	assert.Equal(t, []any{"red"}, r.Answer)
	assert.Equal(t, FormatSingleChoice, r.Format)
	assert.True(t, r.Synthetic)
	assert.Equal(t, fixedNow, r.StartDate)

	tests := []struct {
		policy Policy
		want   any
	}{
		{PolicyFirst, []any{"red"}},
		{PolicyLast, []any{"blue"}},
		{PolicyDefault, nil},
		{PolicySkip, nil},
	}
	for _, tt := range tests {
		r := s.Synthesize(step, map[string]any{"color": "purple"}, tt.policy)
		assert.Equal(t, tt.want, r.Answer, tt.policy)
	}
}

func TestSynthesizeChoiceValidation(t *testing.T) {
	single := questionStep(t, `{"identifier": "n", "type": "singleChoiceText", "items": [
		{"text": "One", "value": 1}, {"text": "Two", "value": 2}
	]}`)
	multi := questionStep(t, `{"identifier": "m", "type": "multipleChoiceText", "items": [
		{"text": "Pizza", "value": "pizza"},
		{"text": "Pasta", "value": "pasta"},
		{"text": "None of these", "value": "none", "exclusive": true}
	]}`)
	s := newTestSynthesizer()

	tests := []struct {
		name string
		step *Step
		raw  any
		want any
	}{
		{"numeric value stores declared", single, 2, []any{float64(2)}},
		{"boxed single", single, []any{1}, []any{float64(1)}},
		{"single rejects two", single, []any{1, 2}, nil},
		{"undeclared", single, 3, nil},
		{"multiple", multi, []any{"pizza", "pasta"}, []any{"pizza", "pasta"}},
		{"exclusive alone", multi, []any{"none"}, []any{"none"}},
		{"exclusive combined", multi, []any{"pizza", "none"}, nil},
		{"empty list", multi, []any{}, nil},
		{"string list", multi, []string{"pasta"}, []any{"pasta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := s.Synthesize(tt.step, map[string]any{tt.step.Identifier: tt.raw}, PolicySkip)
			assert.Equal(t, tt.want, r.Answer)
		})
	}
}

func TestSynthesizeBooleanDefaultsFalse(t *testing.T) {
	step := questionStep(t, `{"identifier": "consent", "type": "boolean"}`)
	s := newTestSynthesizer()

	for _, policy := range []Policy{PolicyFirst, PolicyLast, PolicyDefault, PolicySkip} {
		assert.Equal(t, false, s.Synthesize(step, map[string]any{"consent": "yes"}, policy).Answer, policy)
		assert.Equal(t, false, s.Synthesize(step, nil, policy).Answer, policy)
	}
	assert.Equal(t, true, s.Synthesize(step, map[string]any{"consent": true}, PolicySkip).Answer)
}

func TestSynthesizeScale(t *testing.T) {
	step := questionStep(t, `{"identifier": "pain", "type": "scale", "range": {"min": 0, "max": 10, "step": 2, "default": 6}}`)
	s := newTestSynthesizer()

	tests := []struct {
		raw    any
		policy Policy
		want   any
	}{
		{4, PolicySkip, 4},
		{float64(8), PolicySkip, 8},
		{3, PolicySkip, nil},
		{3, PolicyFirst, 0},
		{12, PolicyLast, 10},
		{4.5, PolicyDefault, 6},
		{"4", PolicyDefault, 6},
	}
	for _, tt := range tests {
		r := s.Synthesize(step, map[string]any{"pain": tt.raw}, tt.policy)
		assert.Equal(t, tt.want, r.Answer, "%v with %s", tt.raw, tt.policy)
	}
}

func TestSynthesizeText(t *testing.T) {
	step := questionStep(t, `{"identifier": "name", "type": "text", "maxLength": 5}`)
	s := newTestSynthesizer()

	assert.Equal(t, "Åsa", s.Synthesize(step, map[string]any{"name": "Åsa"}, PolicySkip).Answer)
	assert.Nil(t, s.Synthesize(step, map[string]any{"name": "Maximilian"}, PolicyFirst).Answer)
	assert.Nil(t, s.Synthesize(step, map[string]any{"name": 42}, PolicyLast).Answer)
}

func TestSynthesizeDate(t *testing.T) {
	step := questionStep(t, `{"identifier": "dob", "type": "date", "range": {"min": "1900-01-01", "max": "2010-12-31"}}`)
	s := newTestSynthesizer()

	assert.Equal(t, DateComponents{Year: 1985, Month: 6, Day: 15},
		s.Synthesize(step, map[string]any{"dob": "1985-06-15"}, PolicySkip).Answer)
	assert.Equal(t, DateComponents{Year: 1900, Month: 1, Day: 1},
		s.Synthesize(step, map[string]any{"dob": "1850-01-01"}, PolicyFirst).Answer)
	assert.Equal(t, DateComponents{Year: 2010, Month: 12, Day: 31},
		s.Synthesize(step, map[string]any{"dob": "not a date"}, PolicyLast).Answer)
	assert.Nil(t, s.Synthesize(step, nil, PolicyDefault).Answer)
}

func TestSynthesizeForm(t *testing.T) {
	step := questionStep(t, `{"identifier": "about", "type": "compound", "items": [
		{"identifier": "age", "type": "scale", "range": {"min": 18, "max": 99}},
		{"identifier": "smoker", "type": "boolean"}
	]}`)
	s := newTestSynthesizer()

	r := s.Synthesize(step, map[string]any{
		"about":        map[string]any{"age": 30},
		"about.smoker": true,
	}, PolicySkip)
	require.Len(t, r.Fields, 2)
	assert.Equal(t, 30, r.Field("age").Answer)
	assert.Equal(t, true, r.Field("smoker").Answer)
	assert.Nil(t, r.Answer)
}

func TestSynthesizeNonQuestion(t *testing.T) {
	step := questionStep(t, `{"identifier": "intro", "type": "instruction"}`)
	r := newTestSynthesizer().Synthesize(step, map[string]any{"intro": "ignored"}, PolicyFirst)
	assert.Equal(t, "intro", r.StepIdentifier)
	assert.Nil(t, r.Answer)
}

func TestLookupAnswerSuffixes(t *testing.T) {
	answers := map[string]any{"S.q": 1, "q": 2, "r": 3}

	v, ok := lookupAnswer(answers, "S.q")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = lookupAnswer(answers, "T.S.r")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = lookupAnswer(answers, "S.z")
	assert.False(t, ok)
}

func TestSynthesizeTask(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "intro", "type": "instruction"},
		{"identifier": "S", "type": "subtask", "steps": [
			{"identifier": "q", "type": "boolean"},
			{"identifier": "n", "type": "scale", "range": {"min": 1, "max": 3}}
		]}
	]`)
	rs := newTestSynthesizer().SynthesizeTask(task, map[string]any{"q": true, "S.n": 2}, PolicySkip)

	assert.Equal(t, 3, rs.Len())
	assert.Equal(t, true, rs.Lookup("S.q").Answer)
	assert.Equal(t, 2, rs.Result("n").Answer)
}

func TestSynthesizeSubtask(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "intro", "type": "instruction"},
		{"identifier": "S", "type": "subtask", "steps": [
			{"identifier": "q", "type": "boolean"},
			{"identifier": "c", "type": "singleChoiceText", "items": ["red", "green"]}
		]}
	]`)
	s := newTestSynthesizer()
	answers := map[string]any{"q": true, "c": "red"}

	r := s.Synthesize(task.Step("S"), answers, PolicyFirst)
	require.Len(t, r.Fields, 2)
	assert.Equal(t, "S.q", r.Field("q").StepIdentifier)
	assert.Equal(t, true, r.Field("q").Answer)
	assert.Equal(t, []any{"red"}, r.Field("c").Answer)

	rs := NewResultSet("t")
	rs.Add(r)
	assert.Equal(t, map[string]any{"S.q": true, "S.c": []any{"red"}}, rs.Answers())

	leaves := s.SynthesizeLeaves(task.Step("S"), answers, PolicyFirst)
	require.Len(t, leaves, 2)
	assert.Equal(t, "S.q", leaves[0].StepIdentifier)
	assert.Equal(t, "S.c", leaves[1].StepIdentifier)

	single := s.SynthesizeLeaves(task.Step("intro"), answers, PolicyFirst)
	require.Len(t, single, 1)
	assert.Equal(t, "intro", single[0].StepIdentifier)
}

func TestReplay(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "intro", "type": "instruction"},
		{"identifier": "q", "type": "boolean"},
		{"identifier": "f", "type": "compound", "items": [
			{"identifier": "age", "type": "scale", "range": {"min": 0, "max": 120}}
		]}
	]`)
	rs := newTestSynthesizer().Replay(task, map[string]any{"q": true, "f.age": 40}, PolicySkip)

	assert.Equal(t, 2, rs.Len())
	assert.Nil(t, rs.Lookup("intro"))
	assert.Equal(t, true, rs.Lookup("q").Answer)
	require.NotNil(t, rs.Lookup("f"))
	assert.Equal(t, 40, rs.Lookup("f").Field("age").Answer)
}

func TestWalk(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "intro", "type": "instruction"},
		{"identifier": "eligible", "type": "boolean", "expectedAnswer": true, "skipIdentifier": "sorry"},
		{"identifier": "color", "type": "singleChoiceText", "items": ["red", "green"],
		 "rules": [{"value": "green", "skipIdentifier": "done"}]},
		{"identifier": "why", "type": "text"},
		{"identifier": "done", "type": "completion", "nextIdentifier": "exit"},
		{"identifier": "sorry", "type": "completion"}
	]`)
	s := newTestSynthesizer()

	tests := []struct {
		name    string
		answers map[string]any
		want    []string
	}{
		{"ineligible", map[string]any{"eligible": false}, []string{"intro", "eligible", "sorry"}},
		{"green", map[string]any{"eligible": true, "color": "green"}, []string{"intro", "eligible", "color", "done"}},
		{"red", map[string]any{"eligible": true, "color": "red"}, []string{"intro", "eligible", "color", "why", "done"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := s.Walk(NewNavigator(task, nil, nil), tt.answers, PolicySkip, 0)
			assert.Equal(t, tt.want, run.Path)
			assert.False(t, run.Truncated)
			assert.Equal(t, len(tt.want), run.Results.Len())
		})
	}
}

func TestWalkLimit(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "again", "type": "boolean", "rules": [{"value": false, "skipIdentifier": "again"}]},
		{"identifier": "done", "type": "completion"}
	]`)
	run := newTestSynthesizer().Walk(NewNavigator(task, nil, nil), nil, PolicySkip, 5)

	assert.True(t, run.Truncated)
	assert.Len(t, run.Path, 5)
	require.Len(t, run.Warnings, 1)
	assert.Equal(t, WarnWalkLimit, run.Warnings[0].Code)
}
