package task

import (
	"fmt"

	"github.com/dlovans/surveytask/pkg/survey"
)

// progressPrefix names progress marker steps: progressStep1, progressStep2, ...
const progressPrefix = "progressStep"

// Assemble builds a task from an ordered list of items.
//
// Items are transformed in order (the last one knows it is last), progress markers
// are placed between active subtasks, inserts are spliced in after the first step,
// and a task that is nothing but one subtask collapses into that subtask's steps.
// Records that fail to transform are dropped with a warning.
func (f *Factory) Assemble(identifier string, items, inserts []survey.Item) (*Task, []Warning) {
	t, warns := f.assemble(identifier, items, inserts, true)
	warns = append(warns, t.Validate()...)
	logWarnings(f.logger(), warns)
	return t, warns
}

// AssembleDocument assembles a parsed document, using its insertSteps.
func (f *Factory) AssembleDocument(doc *survey.Document) (*Task, []Warning) {
	if doc == nil {
		return NewTask("", nil), nil
	}
	t, warns := f.Assemble(doc.Identifier, doc.Steps, doc.InsertSteps)
	if t.Title == "" {
		t.Title = f.text(doc.Title)
	}
	return t, warns
}

func (f *Factory) assemble(identifier string, items, inserts []survey.Item, last bool) (*Task, []Warning) {
	var warns []Warning

	steps := make([]*Step, 0, len(items))
	for i, item := range items {
		s, w := f.transform(item, last && i == len(items)-1)
		warns = append(warns, w...)
		steps = append(steps, s...)
	}

	steps = f.withProgress(steps)

	var inserted []*Step
	for _, item := range inserts {
		s, w := f.transform(item, false)
		warns = append(warns, w...)
		inserted = append(inserted, s...)
	}
	steps = splice(steps, inserted)

	if len(steps) == 1 && steps[0].Kind == KindSubtask && steps[0].Subtask != nil {
		inner := steps[0].Subtask
		collapsed := NewTask(identifier, inner.steps)
		collapsed.Title = inner.Title
		if collapsed.Title == "" {
			collapsed.Title = steps[0].Title
		}
		return collapsed, warns
	}
	return NewTask(identifier, steps), warns
}

// withProgress inserts a progress marker before every titled active subtask
// after the first. Nothing is inserted unless there are at least two.
func (f *Factory) withProgress(steps []*Step) []*Step {
	var titles []string
	position := make(map[*Step]int)
	for _, s := range steps {
		if s.Kind != KindSubtask || !s.Active {
			continue
		}
		title := activeTitle(s)
		if title == "" {
			continue
		}
		position[s] = len(titles)
		titles = append(titles, title)
	}
	if len(titles) < 2 {
		return steps
	}

	out := make([]*Step, 0, len(steps)+len(titles)-1)
	for _, s := range steps {
		if idx, ok := position[s]; ok && idx > 0 {
			out = append(out, &Step{
				Identifier: fmt.Sprintf("%s%d", progressPrefix, idx),
				Kind:       KindProgress,
				Title:      f.localize("PROGRESS_TITLE"),
				Progress:   &ProgressInfo{Titles: append([]string(nil), titles...), Index: idx},
			})
		}
		out = append(out, s)
	}
	return out
}

// activeTitle is the breadcrumb title of an active subtask: its first inner
// step's title, or the subtask's own.
func activeTitle(s *Step) string {
	if s.Subtask != nil && s.Subtask.Len() > 0 {
		if t := s.Subtask.steps[0].Title; t != "" {
			return t
		}
	}
	return s.Title
}

// splice places inserts directly after the first step. When the first step is
// a subtask, its first leaf is pulled out and the rest stays wrapped.
func splice(steps, inserts []*Step) []*Step {
	if len(inserts) == 0 {
		return steps
	}
	if len(steps) == 0 {
		return inserts
	}
	first, rest := splitFirst(steps[0])
	out := make([]*Step, 0, len(steps)+len(inserts)+1)
	out = append(out, first)
	out = append(out, inserts...)
	if rest != nil {
		out = append(out, rest)
	}
	return append(out, steps[1:]...)
}

// splitFirst returns the first leaf of s, qualified by the subtasks it was
// pulled out of and carrying their skip rules, and whatever remains of s (nil
// when nothing does).
func splitFirst(s *Step) (*Step, *Step) {
	if s.Kind != KindSubtask || s.Subtask.Len() == 0 {
		return s, nil
	}
	inner := s.Subtask.steps
	first, innerRest := splitFirst(inner[0])
	first = first.withIdentifier(s.Identifier + "." + first.Identifier)
	// The pulled-out leaf is still part of s, so it is skipped whenever s is.
	first.Skip = combineSkips(s.Skip, first.Skip)

	remaining := make([]*Step, 0, len(inner))
	if innerRest != nil {
		remaining = append(remaining, innerRest)
	}
	remaining = append(remaining, inner[1:]...)
	if len(remaining) == 0 {
		return first, nil
	}
	rest := *s
	rest.Subtask = s.Subtask.withSteps(remaining)
	return first, &rest
}
