package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSetAddReplaces(t *testing.T) {
	rs := NewResultSet("t")
	rs.Add(&StepResult{StepIdentifier: "a", Answer: 1})
	rs.Add(&StepResult{StepIdentifier: "b", Answer: 2})
	rs.Add(&StepResult{StepIdentifier: "a", Answer: 3})
	rs.Add(nil)

	require.Equal(t, 2, rs.Len())
	got := rs.Results()
	assert.Equal(t, "b", got[0].StepIdentifier)
	assert.Equal(t, "a", got[1].StepIdentifier)
	assert.Equal(t, 3, rs.Lookup("a").Answer)
}

func TestResultSetLookup(t *testing.T) {
	prior := NewResultSet("consent")
	prior.Add(&StepResult{StepIdentifier: "sharing", Answer: []any{true}})
	prior.Add(&StepResult{StepIdentifier: "S.q", Answer: "old"})

	rs := NewResultSet("reconsent", prior)
	rs.Add(&StepResult{StepIdentifier: "S.q", Answer: "new"})
	rs.Add(&StepResult{StepIdentifier: "T.inner.x", Answer: 1})

	assert.Equal(t, "new", rs.Lookup("S.q").Answer)
	assert.Equal(t, []any{true}, rs.Lookup("sharing").Answer)
	assert.Nil(t, rs.Lookup("q"))
	assert.Equal(t, "new", rs.Result("q").Answer)
	assert.Equal(t, 1, rs.Result("x").Answer)
	assert.Equal(t, 1, rs.Result("inner.x").Answer)
	assert.Nil(t, rs.Result("y"))

	var empty *TaskResultSet
	assert.Nil(t, empty.Result("q"))
	assert.Equal(t, 0, empty.Len())
}

func TestResultSetAnswers(t *testing.T) {
	prior := NewResultSet("prior")
	prior.Add(&StepResult{StepIdentifier: "q", Answer: "old"})
	prior.Add(&StepResult{StepIdentifier: "kept", Answer: true})

	rs := NewResultSet("now", prior)
	rs.Add(&StepResult{StepIdentifier: "q", Answer: "new"})
	rs.Add(&StepResult{StepIdentifier: "intro"})
	rs.Add(&StepResult{StepIdentifier: "form", Fields: map[string]*StepResult{
		"age": {StepIdentifier: "age", Answer: 30},
	}})

	assert.Equal(t, map[string]any{
		"q":        "new",
		"kept":     true,
		"form.age": 30,
	}, rs.Answers())
}

func TestDateOf(t *testing.T) {
	d := DateOf(time.Date(2023, 11, 5, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, DateComponents{Year: 2023, Month: 11, Day: 5}, d)
	assert.Equal(t, "2023-11-05", d.String())
	assert.True(t, d.before(DateComponents{2023, 12, 1}))
	assert.False(t, d.before(d))
}
