package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(answers map[string]any) *TaskResultSet {
	rs := NewResultSet("test")
	for id, a := range answers {
		rs.Add(&StepResult{StepIdentifier: id, Answer: a})
	}
	return rs
}

func nextID(t *testing.T, nav *Navigator, current string, rs *TaskResultSet) string {
	t.Helper()
	s := nav.StepAfter(current, rs)
	if s == nil {
		return ""
	}
	return s.Identifier
}

func TestStepAfterFirstStep(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "welcome", "type": "instruction"},
		{"identifier": "q", "type": "boolean"}
	]`)
	nav := NewNavigator(task, nil, nil)
	assert.Equal(t, "welcome", nextID(t, nav, "", nil))
	assert.Equal(t, "q", nextID(t, nav, "welcome", nil))
	assert.Equal(t, "", nextID(t, nav, "q", nil))
}

func TestStepAfterDirectTargetBeatsRules(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "q", "type": "boolean", "nextIdentifier": "X",
		 "rules": [{"value": true, "skipIdentifier": "Y"}]},
		{"identifier": "a", "type": "instruction"},
		{"identifier": "X", "type": "instruction"},
		{"identifier": "Y", "type": "instruction"}
	]`)
	nav := NewNavigator(task, nil, nil)
	assert.Equal(t, "X", nextID(t, nav, "q", results(map[string]any{"q": true})))
}

func TestStepAfterFirstMatchingRuleWins(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "pain", "type": "scale", "range": {"min": 0, "max": 10},
		 "rules": [
			{"operator": "gt", "value": 3, "skipIdentifier": "P"},
			{"operator": "gt", "value": 1, "skipIdentifier": "R"}
		 ]},
		{"identifier": "next", "type": "instruction"},
		{"identifier": "P", "type": "instruction"},
		{"identifier": "R", "type": "instruction"}
	]`)
	nav := NewNavigator(task, nil, nil)

	tests := []struct {
		answer any
		want   string
	}{
		{5, "P"},
		{2, "R"},
		{0, "next"},
		{nil, "next"},
	}
	for _, tt := range tests {
		rs := NewResultSet("test")
		rs.Add(&StepResult{StepIdentifier: "pain", Answer: tt.answer})
		assert.Equal(t, tt.want, nextID(t, nav, "pain", rs), "answer %v", tt.answer)
	}
}

func TestStepAfterMissingResultNeverMatches(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "q", "type": "boolean", "rules": [
			{"operator": "ne", "value": true, "skipIdentifier": "b"}
		]},
		{"identifier": "a", "type": "instruction"},
		{"identifier": "b", "type": "instruction"}
	]`)
	nav := NewNavigator(task, nil, nil)
	assert.Equal(t, "a", nextID(t, nav, "q", nil))
	assert.Equal(t, "b", nextID(t, nav, "q", results(map[string]any{"q": false})))
}

func TestStepAfterSkipThenRecurse(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "a", "type": "instruction"},
		{"identifier": "perm", "type": "permissions", "items": ["camera"], "nextIdentifier": "c"},
		{"identifier": "b", "type": "instruction"},
		{"identifier": "c", "type": "instruction"}
	]`)

	granted := NewNavigator(task, &SessionState{Permissions: map[string]bool{"camera": true}}, nil)
	assert.Equal(t, "c", nextID(t, granted, "a", nil))

	pending := NewNavigator(task, nil, nil)
	assert.Equal(t, "perm", nextID(t, pending, "a", nil))
	assert.Equal(t, "c", nextID(t, pending, "perm", nil))
}

func TestStepAfterSkippedJumpTarget(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "a", "type": "instruction", "nextIdentifier": "reg"},
		{"identifier": "b", "type": "instruction"},
		{"identifier": "reg", "type": "registration"},
		{"identifier": "done", "type": "completion"}
	]`)
	nav := NewNavigator(task, &SessionState{Registered: true}, nil)
	assert.Equal(t, "done", nextID(t, nav, "a", nil))
}

func TestStepAfterSkipIfExpression(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "smoker", "type": "boolean"},
		{"identifier": "packs", "type": "scale", "range": {"min": 0, "max": 5}, "skipIf": ".answers.smoker != true"},
		{"identifier": "done", "type": "completion"}
	]`)
	nav := NewNavigator(task, nil, nil)
	assert.Equal(t, "done", nextID(t, nav, "smoker", results(map[string]any{"smoker": false})))
	assert.Equal(t, "packs", nextID(t, nav, "smoker", results(map[string]any{"smoker": true})))
}

func TestStepAfterExit(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "eligible", "type": "boolean", "expectedAnswer": true},
		{"identifier": "S", "type": "subtask", "steps": [
			{"identifier": "s1", "type": "boolean", "rules": [{"value": false, "skipIdentifier": "exit"}]},
			{"identifier": "s2", "type": "instruction"}
		]},
		{"identifier": "done", "type": "completion"}
	]`)
	nav := NewNavigator(task, nil, nil)

	assert.Equal(t, "", nextID(t, nav, "eligible", results(map[string]any{"eligible": false})))
	assert.Equal(t, "S.s1", nextID(t, nav, "eligible", results(map[string]any{"eligible": true})))
	assert.Equal(t, "", nextID(t, nav, "S.s1", results(map[string]any{"S.s1": false})))
	assert.Equal(t, "S.s2", nextID(t, nav, "S.s1", results(map[string]any{"S.s1": true})))
}

func TestStepAfterSubtasks(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "intro", "type": "instruction"},
		{"identifier": "S", "type": "subtask", "nextIdentifier": "outro", "steps": [
			{"identifier": "s1", "type": "instruction"},
			{"identifier": "s2", "type": "instruction"}
		]},
		{"identifier": "skipped", "type": "instruction"},
		{"identifier": "outro", "type": "completion"}
	]`)
	nav := NewNavigator(task, nil, nil)

	assert.Equal(t, "S.s1", nextID(t, nav, "intro", nil))
	assert.Equal(t, "S.s2", nextID(t, nav, "S.s1", nil))
	assert.Equal(t, "outro", nextID(t, nav, "S.s2", nil))
}

func TestStepAfterJumpIntoSubtask(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "intro", "type": "instruction", "nextIdentifier": "S.s2"},
		{"identifier": "S", "type": "subtask", "steps": [
			{"identifier": "s1", "type": "instruction"},
			{"identifier": "s2", "type": "instruction"}
		]},
		{"identifier": "outro", "type": "completion"}
	]`)
	nav := NewNavigator(task, nil, nil)
	assert.Equal(t, "S.s2", nextID(t, nav, "intro", nil))
}

func TestStepAfterDanglingTarget(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "q", "type": "instruction", "nextIdentifier": "nowhere"},
		{"identifier": "S", "type": "subtask", "steps": [
			{"identifier": "s1", "type": "instruction", "nextIdentifier": "missing"},
			{"identifier": "s2", "type": "instruction"}
		]},
		{"identifier": "outro", "type": "completion"}
	]`)
	nav := NewNavigator(task, nil, nil)

	assert.Equal(t, "", nextID(t, nav, "q", nil))
	assert.Equal(t, "outro", nextID(t, nav, "S.s1", nil))
}

func TestStepAfterSkipLoop(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "a", "type": "instruction"},
		{"identifier": "b", "type": "permissions", "nextIdentifier": "c"},
		{"identifier": "c", "type": "permissions", "nextIdentifier": "b"},
		{"identifier": "d", "type": "instruction"}
	]`)
	nav := NewNavigator(task, nil, nil)
	assert.Nil(t, nav.StepAfter("a", nil))
}

func TestStepAfterSplicedStep(t *testing.T) {
	task, _ := assembleJSON(t, `{
		"steps": [
			{"identifier": "A", "type": "subtask", "steps": [
				{"identifier": "A1", "type": "instruction"},
				{"identifier": "A2", "type": "instruction"},
				{"identifier": "A3", "type": "instruction"}
			]},
			{"identifier": "B", "type": "instruction"}
		],
		"insertSteps": [
			{"identifier": "I1", "type": "instruction"},
			{"identifier": "I2", "type": "instruction", "nextIdentifier": "A.A3"}
		]
	}`)
	nav := NewNavigator(task, nil, nil)

	assert.Equal(t, "A.A1", nextID(t, nav, "", nil))
	assert.Equal(t, "I1", nextID(t, nav, "A.A1", nil))
	assert.Equal(t, "A.A3", nextID(t, nav, "I2", nil))
	assert.Equal(t, "A.A3", nextID(t, nav, "A.A2", nil))
	assert.Equal(t, "B", nextID(t, nav, "A.A3", nil))
}

func TestStepAfterSplicedStepKeepsScope(t *testing.T) {
	task, _ := assembleJSON(t, `{
		"steps": [
			{"identifier": "A", "type": "subtask", "steps": [
				{"identifier": "A1", "type": "instruction", "nextIdentifier": "A3"},
				{"identifier": "A2", "type": "instruction"},
				{"identifier": "A3", "type": "instruction"}
			]}
		],
		"insertSteps": [{"identifier": "I1", "type": "instruction"}]
	}`)
	nav := NewNavigator(task, nil, nil)
	assert.Equal(t, "A.A3", nextID(t, nav, "A.A1", nil))
}

func TestStepAfterFormFieldRule(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "about", "type": "compound", "items": [
			{"identifier": "age", "type": "scale", "range": {"min": 0, "max": 120},
			 "rules": [{"operator": "lt", "value": 18, "skipIdentifier": "minor"}]}
		]},
		{"identifier": "adult", "type": "instruction"},
		{"identifier": "minor", "type": "instruction"}
	]`)
	nav := NewNavigator(task, nil, nil)

	rs := NewResultSet("test")
	rs.Add(&StepResult{StepIdentifier: "about", Fields: map[string]*StepResult{
		"age": {StepIdentifier: "age", Answer: 12},
	}})
	assert.Equal(t, "minor", nextID(t, nav, "about", rs))

	rs.Add(&StepResult{StepIdentifier: "about", Fields: map[string]*StepResult{
		"age": {StepIdentifier: "age", Answer: 40},
	}})
	assert.Equal(t, "adult", nextID(t, nav, "about", rs))
}

func TestStepBefore(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "a", "type": "instruction"},
		{"identifier": "S", "type": "subtask", "steps": [{"identifier": "q", "type": "boolean"}]},
		{"identifier": "b", "type": "instruction"}
	]`)
	nav := NewNavigator(task, nil, nil)

	rs := NewResultSet("test")
	rs.Add(&StepResult{StepIdentifier: "a"})
	rs.Add(&StepResult{StepIdentifier: "S.q", Answer: true})

	prev := nav.StepBefore("b", rs)
	require.NotNil(t, prev)
	assert.Equal(t, "S.q", prev.Identifier)

	prev = nav.StepBefore("S.q", rs)
	require.NotNil(t, prev)
	assert.Equal(t, "a", prev.Identifier)

	assert.Nil(t, nav.StepBefore("a", rs))
}

func TestProgress(t *testing.T) {
	task, _ := assembleJSON(t, `[
		{"identifier": "intro", "type": "instruction"},
		{"identifier": "S", "type": "subtask", "steps": [
			{"identifier": "s1", "type": "instruction"},
			{"identifier": "s2", "type": "instruction"}
		]},
		{"identifier": "outro", "type": "completion"}
	]`)
	nav := NewNavigator(task, nil, nil)

	idx, total := nav.Progress("S.s1")
	assert.Equal(t, 1, idx)
	assert.Equal(t, 4, total)

	idx, _ = nav.Progress("nope")
	assert.Equal(t, -1, idx)
}
