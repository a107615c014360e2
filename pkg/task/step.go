// Package task assembles survey items into a navigable task and evaluates
// step-to-step navigation against accumulated results.
//
// The pipeline is: survey items -> steps (Factory.Transform) -> ordered task with
// progress markers and inserted steps (Factory.Assemble) -> runtime navigation
// (Navigator.StepAfter). Synthesizer goes the other way and builds results from an
// answer map.
package task

import (
	"reflect"
	"time"

	"github.com/dlovans/surveytask/pkg/resource"
)

// StepKind is the shape of an assembled step.
type StepKind string

const (
	KindInstruction StepKind = "instruction"
	KindQuestion    StepKind = "question"
	KindForm        StepKind = "form"
	KindSubtask     StepKind = "subtask"
	KindProgress    StepKind = "progress"
	KindCustom      StepKind = "custom"
)

// ExitIdentifier is the navigation target that ends the task.
const ExitIdentifier = "exit"

// Step is one assembled unit of a task.
// Steps are treated as immutable once a task has been assembled.
type Step struct {
	Identifier string   `json:"identifier"`
	Kind       StepKind `json:"kind"`
	Custom     string   `json:"custom,omitempty"` // onboarding step type for custom steps, "completion" for completion steps

	Title         string          `json:"title,omitempty"`
	Text          string          `json:"text,omitempty"`
	Detail        string          `json:"detail,omitempty"`
	Footnote      string          `json:"footnote,omitempty"`
	Image         *resource.Image `json:"image,omitempty"`
	LearnMoreHTML string          `json:"learnMoreHTML,omitempty"`
	LearnMoreURL  string          `json:"learnMoreURL,omitempty"` // base URL for relative links in LearnMoreHTML
	ContinueTitle string          `json:"continueTitle,omitempty"`
	Optional      bool            `json:"optional,omitempty"`
	Active        bool            `json:"active,omitempty"`

	Format      *AnswerFormat `json:"format,omitempty"`
	Fields      []*Step       `json:"fields,omitempty"`
	Subtask     *Task         `json:"subtask,omitempty"`
	Progress    *ProgressInfo `json:"progress,omitempty"`
	Permissions []string      `json:"permissions,omitempty"`

	NextIdentifier string           `json:"nextIdentifier,omitempty"`
	Rules          []NavigationRule `json:"rules,omitempty"`
	Skip           SkipRule         `json:"-"`
}

// FormatKind is the type of answer a question accepts.
type FormatKind string

const (
	FormatBoolean        FormatKind = "boolean"
	FormatSingleChoice   FormatKind = "singleChoice"
	FormatMultipleChoice FormatKind = "multipleChoice"
	FormatScale          FormatKind = "scale"
	FormatText           FormatKind = "text"
	FormatDate           FormatKind = "date"
)

// AnswerFormat constrains the answer of a question or form field.
type AnswerFormat struct {
	Kind    FormatKind  `json:"kind"`
	Choices []Choice    `json:"choices,omitempty"`
	Scale   *ScaleRange `json:"scale,omitempty"`
	Text    *TextRule   `json:"text,omitempty"`
	Date    *DateRange  `json:"date,omitempty"`
}

// Choice is a (label, opaque value) pair.
type Choice struct {
	Text      string `json:"text"`
	Detail    string `json:"detail,omitempty"`
	Value     any    `json:"value"`
	Exclusive bool   `json:"exclusive,omitempty"`
}

type ScaleRange struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Step     int    `json:"step"`
	Default  *int   `json:"default,omitempty"`
	MinLabel string `json:"minLabel,omitempty"`
	MaxLabel string `json:"maxLabel,omitempty"`
}

type TextRule struct {
	MaxLength   int    `json:"maxLength,omitempty"`
	Multiline   bool   `json:"multiline,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

type DateRange struct {
	Min *time.Time `json:"min,omitempty"`
	Max *time.Time `json:"max,omitempty"`
}

// ProgressInfo is the breadcrumb carried by a progress marker step.
// Index is the position of the active step about to start.
type ProgressInfo struct {
	Titles []string `json:"titles"`
	Index  int      `json:"index"`
}

// IsChoice reports whether the format is single or multiple choice.
func (f *AnswerFormat) IsChoice() bool {
	return f != nil && (f.Kind == FormatSingleChoice || f.Kind == FormatMultipleChoice)
}

// withIdentifier returns a shallow copy carrying a different identifier.
func (s *Step) withIdentifier(id string) *Step {
	c := *s
	c.Identifier = id
	return &c
}

// Clone returns a deep copy of the step, including nested fields and subtasks.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	c := *s
	c.Format = s.Format.clone()
	if s.Fields != nil {
		c.Fields = make([]*Step, len(s.Fields))
		for i, f := range s.Fields {
			c.Fields[i] = f.Clone()
		}
	}
	c.Subtask = s.Subtask.Clone()
	if s.Progress != nil {
		p := *s.Progress
		p.Titles = append([]string(nil), s.Progress.Titles...)
		c.Progress = &p
	}
	if s.Image != nil {
		img := *s.Image
		c.Image = &img
	}
	c.Permissions = append([]string(nil), s.Permissions...)
	c.Rules = append([]NavigationRule(nil), s.Rules...)
	return &c
}

func (f *AnswerFormat) clone() *AnswerFormat {
	if f == nil {
		return nil
	}
	c := *f
	c.Choices = append([]Choice(nil), f.Choices...)
	if f.Scale != nil {
		sc := *f.Scale
		if f.Scale.Default != nil {
			d := *f.Scale.Default
			sc.Default = &d
		}
		c.Scale = &sc
	}
	if f.Text != nil {
		t := *f.Text
		c.Text = &t
	}
	if f.Date != nil {
		d := *f.Date
		c.Date = &d
	}
	return &c
}

// Equal reports whether two steps are value-equal, ignoring allocation identity.
// Skip rules compare by their description.
func (s *Step) Equal(o *Step) bool {
	if s == nil || o == nil {
		return s == o
	}
	a, b := *s, *o
	if skipString(a.Skip) != skipString(b.Skip) {
		return false
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if !a.Fields[i].Equal(b.Fields[i]) {
			return false
		}
	}
	if !a.Subtask.Equal(b.Subtask) {
		return false
	}
	a.Skip, b.Skip = nil, nil
	a.Fields, b.Fields = nil, nil
	a.Subtask, b.Subtask = nil, nil
	return reflect.DeepEqual(a, b)
}

func skipString(r SkipRule) string {
	if r == nil {
		return ""
	}
	return r.String()
}
