package task

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Task is an ordered, navigable sequence of steps.
// Subtask steps carry their own Task; their inner steps are addressed as
// "subtask.inner" from the outside.
type Task struct {
	Identifier string
	Title      string
	steps      []*Step
}

// NewTask creates a task over the given steps.
func NewTask(identifier string, steps []*Step) *Task {
	return &Task{Identifier: identifier, steps: steps}
}

// Steps returns the top-level steps in order.
func (t *Task) Steps() []*Step {
	if t == nil {
		return nil
	}
	return append([]*Step(nil), t.steps...)
}

// Len returns the number of top-level steps.
func (t *Task) Len() int {
	if t == nil {
		return 0
	}
	return len(t.steps)
}

func (t *Task) index(id string) int {
	for i, s := range t.steps {
		if s.Identifier == id {
			return i
		}
	}
	return -1
}

// Step looks up a step by identifier. Nested steps are returned with their
// fully-qualified identifier.
func (t *Task) Step(id string) *Step {
	if t == nil || id == "" {
		return nil
	}
	if i := t.index(id); i >= 0 {
		return t.steps[i]
	}
	for _, s := range t.steps {
		if s.Kind != KindSubtask {
			continue
		}
		prefix := s.Identifier + "."
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if inner := s.Subtask.Step(strings.TrimPrefix(id, prefix)); inner != nil {
			return inner.withIdentifier(prefix + inner.Identifier)
		}
	}
	return nil
}

// Identifiers returns the fully-qualified identifiers of every leaf step in
// declaration order.
func (t *Task) Identifiers() []string {
	if t == nil {
		return nil
	}
	var ids []string
	for _, s := range t.steps {
		if s.Kind == KindSubtask {
			for _, inner := range s.Subtask.Identifiers() {
				ids = append(ids, s.Identifier+"."+inner)
			}
			continue
		}
		ids = append(ids, s.Identifier)
	}
	return ids
}

// Validate checks that identifiers are pairwise distinct across the flattened
// leaf sequence and the subtask steps themselves.
func (t *Task) Validate() []Warning {
	ids := t.Identifiers()
	for _, s := range t.steps {
		if s.Kind == KindSubtask {
			ids = append(ids, s.Identifier)
		}
	}

	var warns []Warning
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			warns = append(warns, Warning{
				Code:       WarnDuplicateIdentifier,
				Identifier: id,
				Message:    fmt.Sprintf("step identifier '%s' is used more than once in task '%s'", id, t.Identifier),
			})
		}
		seen[id] = true
	}
	return warns
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := &Task{Identifier: t.Identifier, Title: t.Title, steps: make([]*Step, len(t.steps))}
	for i, s := range t.steps {
		c.steps[i] = s.Clone()
	}
	return c
}

// Equal reports whether two tasks hold value-equal steps.
func (t *Task) Equal(o *Task) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Identifier != o.Identifier || t.Title != o.Title || len(t.steps) != len(o.steps) {
		return false
	}
	for i := range t.steps {
		if !t.steps[i].Equal(o.steps[i]) {
			return false
		}
	}
	return true
}

// withSteps returns a copy of the task holding a different step list.
func (t *Task) withSteps(steps []*Step) *Task {
	return &Task{Identifier: t.Identifier, Title: t.Title, steps: steps}
}

// MarshalJSON renders the task for inspection tools.
func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Identifier string  `json:"identifier"`
		Title      string  `json:"title,omitempty"`
		Steps      []*Step `json:"steps"`
	}{t.Identifier, t.Title, t.steps})
}
