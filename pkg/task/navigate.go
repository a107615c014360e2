package task

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Navigator answers "which step comes after X" for an assembled task.
//
// For a current step X and results R the next step is chosen by, in order:
// the candidate's skip rule (a skipped step is passed over as if it had been
// visited), X's direct NextIdentifier, X's predicate rules (first match wins),
// and finally declaration order. Subtask steps are entered and left by namespace.
type Navigator struct {
	task   *Task
	state  *SessionState
	logger *zap.Logger
}

// NewNavigator creates a navigator. A nil state behaves as an empty one.
func NewNavigator(t *Task, state *SessionState, logger *zap.Logger) *Navigator {
	if state == nil {
		state = &SessionState{}
	}
	return &Navigator{task: t, state: state, logger: nopIfNil(logger)}
}

// Task returns the task being navigated.
func (n *Navigator) Task() *Task { return n.task }

// State returns the session state skip rules read.
func (n *Navigator) State() *SessionState { return n.state }

// walk carries the per-call state of one StepAfter evaluation.
type walk struct {
	results *TaskResultSet
	visited map[string]bool
}

// StepAfter returns the step following currentID, or nil when the task is over.
// An empty currentID asks for the first step. Returned steps carry their
// fully-qualified identifier.
func (n *Navigator) StepAfter(currentID string, results *TaskResultSet) *Step {
	if n.task == nil {
		return nil
	}
	w := &walk{results: results, visited: make(map[string]bool)}
	var s *Step
	if currentID == "" {
		s, _ = n.from(n.task, "", 0, w)
	} else {
		s, _ = n.after(n.task, "", currentID, w)
	}
	return s
}

// StepBefore returns the step whose result precedes currentID's in the result
// set, or the step of the latest result when currentID has none yet.
func (n *Navigator) StepBefore(currentID string, results *TaskResultSet) *Step {
	rs := results.Results()
	end := len(rs)
	for i, r := range rs {
		if r.StepIdentifier == currentID {
			end = i
			break
		}
	}
	for i := end - 1; i >= 0; i-- {
		if s := n.task.Step(rs[i].StepIdentifier); s != nil && s.Kind != KindProgress {
			return s
		}
	}
	return nil
}

// Progress returns the position of id among the task's leaf steps and their
// count. The index is -1 for unknown identifiers.
func (n *Navigator) Progress(id string) (int, int) {
	ids := n.task.Identifiers()
	for i, v := range ids {
		if v == id {
			return i, len(ids)
		}
	}
	return -1, len(ids)
}

// after resolves the step following id within t. The bool reports that the
// whole task ended (exit or loop) rather than t merely running out of steps.
func (n *Navigator) after(t *Task, prefix, id string, w *walk) (*Step, bool) {
	if i := t.index(id); i >= 0 {
		return n.leave(t, prefix, i, w)
	}
	for i, s := range t.steps {
		if s.Kind != KindSubtask || !strings.HasPrefix(id, s.Identifier+".") {
			continue
		}
		next, end := n.after(s.Subtask, prefix+s.Identifier+".", strings.TrimPrefix(id, s.Identifier+"."), w)
		if next != nil || end {
			return next, end
		}
		return n.leave(t, prefix, i, w)
	}
	n.logger.Warn("current step not found",
		zap.String("code", string(WarnDanglingTarget)),
		zap.String("identifier", prefix+id),
	)
	return nil, true
}

// leave picks the successor of t.steps[i] from its direct target, its rules, or
// declaration order.
func (n *Navigator) leave(t *Task, prefix string, i int, w *walk) (*Step, bool) {
	cur := t.steps[i]
	target := cur.NextIdentifier
	if target == "" {
		target = n.ruleTarget(cur, prefix, w.results)
	}
	if target != "" {
		return n.jump(t, prefix, n.resolve(t, cur, target), w)
	}
	return n.from(t, prefix, i+1, w)
}

// ruleTarget returns the target of the first rule of cur matching its result.
// A rule naming a ResultIdentifier tests that form field, or a sibling step.
func (n *Navigator) ruleTarget(cur *Step, prefix string, results *TaskResultSet) string {
	if len(cur.Rules) == 0 {
		return ""
	}
	own := results.Lookup(prefix + cur.Identifier)
	for _, r := range cur.Rules {
		res := own
		if r.ResultIdentifier != "" {
			if res = own.Field(r.ResultIdentifier); res == nil {
				res = results.Lookup(prefix + r.ResultIdentifier)
			}
			if res == nil {
				res = results.Result(r.ResultIdentifier)
			}
		}
		if r.Matches(res) {
			return r.Target
		}
	}
	return ""
}

// resolve qualifies a target declared inside a subtask whose first step was
// spliced out to the outer scope ("A.A1" targeting "A2" means "A.A2").
func (n *Navigator) resolve(t *Task, cur *Step, target string) string {
	if target == ExitIdentifier || t.Step(target) != nil {
		return target
	}
	if dot := strings.LastIndex(cur.Identifier, "."); dot > 0 {
		qualified := cur.Identifier[:dot+1] + target
		if t.Step(qualified) != nil {
			return qualified
		}
	}
	return target
}

// jump moves to target within t. An unknown target ends t's scope.
func (n *Navigator) jump(t *Task, prefix, target string, w *walk) (*Step, bool) {
	if target == ExitIdentifier {
		return nil, true
	}
	if i := t.index(target); i >= 0 {
		return n.enter(t, prefix, i, w)
	}
	for i, s := range t.steps {
		if s.Kind != KindSubtask || !strings.HasPrefix(target, s.Identifier+".") {
			continue
		}
		inner := strings.TrimPrefix(target, s.Identifier+".")
		if s.Subtask.Step(inner) == nil {
			continue
		}
		next, end := n.jump(s.Subtask, prefix+s.Identifier+".", inner, w)
		if next != nil || end {
			return next, end
		}
		return n.leave(t, prefix, i, w)
	}
	n.logger.Warn(fmt.Sprintf("navigation target '%s' does not exist", target),
		zap.String("code", string(WarnDanglingTarget)),
		zap.String("identifier", prefix+target),
	)
	return nil, false
}

// from enters the first step at or after index i.
func (n *Navigator) from(t *Task, prefix string, i int, w *walk) (*Step, bool) {
	if i >= len(t.steps) {
		return nil, false
	}
	return n.enter(t, prefix, i, w)
}

// enter makes t.steps[i] the candidate: skipped steps are passed over and
// subtasks yield their first step.
func (n *Navigator) enter(t *Task, prefix string, i int, w *walk) (*Step, bool) {
	s := t.steps[i]
	key := prefix + s.Identifier
	if w.visited[key] {
		n.logger.Warn("navigation loop detected",
			zap.String("code", string(WarnNavigationLoop)),
			zap.String("identifier", key),
		)
		return nil, true
	}
	w.visited[key] = true

	if s.Skip != nil && s.Skip.ShouldSkip(n.state, w.results) {
		return n.leave(t, prefix, i, w)
	}
	if s.Kind == KindSubtask && s.Subtask != nil {
		next, end := n.from(s.Subtask, key+".", 0, w)
		if next != nil || end {
			return next, end
		}
		return n.leave(t, prefix, i, w)
	}
	return s.withIdentifier(key), false
}
