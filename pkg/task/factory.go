package task

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dlovans/surveytask/pkg/resource"
	"github.com/dlovans/surveytask/pkg/survey"
)

// Localizer looks up display strings by key.
type Localizer interface {
	Localize(key string) (string, bool)
}

// Strings is a map-backed Localizer.
type Strings map[string]string

func (s Strings) Localize(key string) (string, bool) {
	v, ok := s[key]
	return v, ok && v != ""
}

// DefaultStrings are used for built-in keys the injected Localizer doesn't know.
var DefaultStrings = Strings{
	"DONE":               "Done",
	"NEXT":               "Next",
	"PROGRESS_TITLE":     "Progress",
	"SHARING_TITLE":      "Sharing Options",
	"SHARING_TEXT":       "Choose how widely your coded study data is shared.",
	"SHARING_ALL":        "Share my data with qualified researchers worldwide",
	"SHARING_STUDY_ONLY": "Only share my data with the study team and its partners",
}

// sharingSuffix names the data-sharing question generated for a consent review.
const sharingSuffix = "Sharing"

// Factory turns decoded survey items into steps.
// A Factory is safe for concurrent use once built; it holds no mutable state.
type Factory struct {
	Resources resource.Resolver
	Strings   Localizer
	Logger    *zap.Logger
}

// NewFactory creates a Factory. Nil collaborators fall back to no-op implementations.
func NewFactory(resources resource.Resolver, strings Localizer, logger *zap.Logger) *Factory {
	if resources == nil {
		resources = resource.Nop{}
	}
	if strings == nil {
		strings = Strings{}
	}
	return &Factory{Resources: resources, Strings: strings, Logger: nopIfNil(logger)}
}

func (f *Factory) logger() *zap.Logger {
	return nopIfNil(f.Logger)
}

func (f *Factory) resources() resource.Resolver {
	if f.Resources == nil {
		return resource.Nop{}
	}
	return f.Resources
}

// Transform converts one item into zero or more steps. A nil result means the
// item was dropped; the warnings say why.
func (f *Factory) Transform(item survey.Item, isLast bool) ([]*Step, []Warning) {
	steps, warns := f.transform(item, isLast)
	logWarnings(f.logger(), warns)
	return steps, warns
}

func (f *Factory) transform(item survey.Item, isLast bool) ([]*Step, []Warning) {
	warns := issueWarnings(item)

	var (
		step  *Step
		extra []*Step
		w     []Warning
	)
	switch item.Type {
	case survey.TypeInstruction:
		step = f.instruction(item)
	case survey.TypeCompletion:
		step = f.instruction(item)
		step.Custom = string(survey.TypeCompletion)
	case survey.TypeBoolean, survey.TypeSingleChoice, survey.TypeMultipleChoice,
		survey.TypeScale, survey.TypeText, survey.TypeDate, survey.TypeDataGroups:
		step, w = f.question(item)
	case survey.TypeCompound:
		step, w = f.form(item)
	case survey.TypeSubtask:
		step, w = f.subtask(item, isLast)
	case survey.TypePermissions, survey.TypeConsentReview, survey.TypeRegistration,
		survey.TypeLogin, survey.TypeExternalID:
		step, extra, w = f.custom(item)
	default:
		step = f.instruction(item)
		step.Custom = string(item.Type)
	}
	warns = append(warns, w...)
	if step == nil {
		return nil, warns
	}

	warns = append(warns, f.navigation(step, item)...)
	if isLast && step.Kind != KindSubtask {
		step.ContinueTitle = f.localize("DONE")
	}
	return append(extra, step), warns
}

// navigation attaches direct targets, predicate rules and skipIf expressions.
func (f *Factory) navigation(step *Step, item survey.Item) []Warning {
	step.NextIdentifier = item.NextIdentifier

	rules, warns := navigationRules(item)
	step.Rules = append(rules, step.Rules...)

	if item.SkipIf != "" {
		expr, err := NewExpressionSkip(item.SkipIf)
		if err != nil {
			warns = append(warns, Warning{Code: WarnInvalidSkipIf, Identifier: item.Identifier, Message: err.Error()})
		} else {
			step.Skip = combineSkips(step.Skip, expr)
		}
	}
	return warns
}

func (f *Factory) base(item survey.Item, kind StepKind) *Step {
	s := &Step{
		Identifier: item.Identifier,
		Kind:       kind,
		Title:      f.text(item.Title),
		Text:       f.text(item.Prompt),
		Detail:     f.text(item.Detail),
		Footnote:   f.text(item.Footnote),
		Optional:   item.Optional,
	}
	res := f.resources()
	if img, ok := res.ImageNamed(item.Image); ok {
		s.Image = img
	}
	if html, ok := res.HTMLNamed(item.LearnMoreHTML); ok {
		s.LearnMoreHTML = html
		if u, ok := res.URLNamed(item.LearnMoreHTML, "html"); ok {
			s.LearnMoreURL = u.String()
		}
	}
	return s
}

func (f *Factory) instruction(item survey.Item) *Step {
	return f.base(item, KindInstruction)
}

func (f *Factory) fallback(item survey.Item, reason string) (*Step, []Warning) {
	return f.instruction(item), []Warning{{
		Code:       WarnFallbackInstruction,
		Identifier: item.Identifier,
		Message:    fmt.Sprintf("%s item shown as instruction: %s", item.Type, reason),
	}}
}

func (f *Factory) question(item survey.Item) (*Step, []Warning) {
	format, reason := f.answerFormat(item)
	if format == nil {
		if p, ok := item.Payload.(survey.ChoicePayload); ok && len(p.Choices) == 0 {
			return nil, []Warning{{
				Code:       WarnDroppedItem,
				Identifier: item.Identifier,
				Message:    fmt.Sprintf("%s item dropped: %s", item.Type, reason),
			}}
		}
		return f.fallback(item, reason)
	}
	s := f.base(item, KindQuestion)
	s.Format = format
	return s, nil
}

// answerFormat builds the format of a question item, or returns nil and the
// reason it can't be asked.
func (f *Factory) answerFormat(item survey.Item) (*AnswerFormat, string) {
	switch p := item.Payload.(type) {
	case survey.ChoicePayload:
		if len(p.Choices) == 0 {
			return nil, "no choices declared"
		}
		kind := FormatSingleChoice
		if p.Multiple {
			kind = FormatMultipleChoice
		}
		choices := make([]Choice, len(p.Choices))
		for i, c := range p.Choices {
			choices[i] = Choice{Text: f.text(c.Text), Detail: f.text(c.Detail), Value: c.Value, Exclusive: c.Exclusive}
		}
		return &AnswerFormat{Kind: kind, Choices: choices}, ""
	case survey.ScalePayload:
		for _, is := range item.Issues {
			if is.Code == survey.IssueInvalidScale && is.Field != "default" {
				return nil, is.Message
			}
		}
		return &AnswerFormat{Kind: FormatScale, Scale: &ScaleRange{
			Min:      p.Min,
			Max:      p.Max,
			Step:     p.Step,
			Default:  p.Default,
			MinLabel: f.text(p.MinLabel),
			MaxLabel: f.text(p.MaxLabel),
		}}, ""
	case survey.TextPayload:
		return &AnswerFormat{Kind: FormatText, Text: &TextRule{
			MaxLength:   p.MaxLength,
			Multiline:   p.Multiline,
			Placeholder: f.text(p.Placeholder),
		}}, ""
	case survey.DatePayload:
		return &AnswerFormat{Kind: FormatDate, Date: &DateRange{Min: p.Min, Max: p.Max}}, ""
	}
	if item.Type == survey.TypeBoolean {
		return &AnswerFormat{Kind: FormatBoolean}, ""
	}
	return nil, "no answer format"
}

// form builds a form step. Each question child becomes a field; child rules move
// up to the form and test the field's result.
func (f *Factory) form(item survey.Item) (*Step, []Warning) {
	p, _ := item.Payload.(survey.FormPayload)

	var warns []Warning
	s := f.base(item, KindForm)
	for _, child := range p.Items {
		warns = append(warns, issueWarnings(child)...)
		if !child.Type.IsQuestion() {
			warns = append(warns, Warning{
				Code:       WarnInvalidField,
				Identifier: item.Identifier,
				Message:    fmt.Sprintf("form field '%s' has non-question type '%s'", child.Identifier, child.Type),
			})
			continue
		}
		format, reason := f.answerFormat(child)
		if format == nil {
			warns = append(warns, Warning{
				Code:       WarnDroppedItem,
				Identifier: item.Identifier,
				Message:    fmt.Sprintf("form field '%s' dropped: %s", child.Identifier, reason),
			})
			continue
		}
		field := f.base(child, KindQuestion)
		field.Format = format
		s.Fields = append(s.Fields, field)

		rules, w := navigationRules(child)
		warns = append(warns, w...)
		for _, r := range rules {
			if r.ResultIdentifier == "" {
				r.ResultIdentifier = child.Identifier
			}
			s.Rules = append(s.Rules, r)
		}
	}
	if len(s.Fields) == 0 {
		fb, w := f.fallback(item, "form has no usable fields")
		return fb, append(warns, w...)
	}
	return s, warns
}

func (f *Factory) subtask(item survey.Item, isLast bool) (*Step, []Warning) {
	p, _ := item.Payload.(survey.SubtaskPayload)
	inner, warns := f.assemble(item.Identifier, p.Items, nil, isLast)
	if inner.Len() == 0 {
		return nil, append(warns, Warning{
			Code:       WarnDroppedItem,
			Identifier: item.Identifier,
			Message:    "subtask has no steps",
		})
	}
	inner.Title = f.text(item.Title)

	s := f.base(item, KindSubtask)
	s.Subtask = inner
	s.Active = p.Active
	return s, warns
}

// custom builds onboarding steps. Each carries a skip rule reading session state.
func (f *Factory) custom(item survey.Item) (*Step, []*Step, []Warning) {
	s := f.base(item, KindCustom)
	s.Custom = string(item.Type)

	var extra []*Step
	var warns []Warning
	switch item.Type {
	case survey.TypePermissions:
		p, _ := item.Payload.(survey.PermissionsPayload)
		s.Permissions = append([]string(nil), p.Permissions...)
		s.Skip = PermissionsSkip{Permissions: s.Permissions}
	case survey.TypeConsentReview:
		s.Skip = ConsentSkip{}
		if opts, ok := item.Raw["sharingOptions"].(map[string]any); ok {
			sharing, w := f.sharing(item, opts)
			warns = append(warns, w...)
			if sharing != nil {
				extra = append(extra, sharing)
			}
		}
	case survey.TypeRegistration:
		s.Skip = RegistrationSkip{}
	case survey.TypeLogin:
		s.Skip = LoginSkip{}
	case survey.TypeExternalID:
		s.Skip = ExternalIDSkip{}
	}
	return s, extra, warns
}

// sharing builds the data-sharing question shown ahead of the consent review.
func (f *Factory) sharing(review survey.Item, opts map[string]any) (*Step, []Warning) {
	raw := make(map[string]any, len(opts)+4)
	for k, v := range opts {
		raw[k] = v
	}
	raw["identifier"] = review.Identifier + sharingSuffix
	if _, ok := raw["type"]; !ok {
		raw["type"] = string(survey.TypeSingleChoice)
	}
	if _, ok := raw["title"]; !ok {
		raw["title"] = f.localize("SHARING_TITLE")
	}
	if _, ok := raw["text"]; !ok {
		raw["text"] = f.localize("SHARING_TEXT")
	}
	if _, ok := raw["items"]; !ok {
		raw["items"] = []any{
			map[string]any{"text": f.localize("SHARING_ALL"), "value": true},
			map[string]any{"text": f.localize("SHARING_STUDY_ONLY"), "value": false},
		}
	}

	item := survey.Decode(raw)
	s, warns := f.question(item)
	warns = append(issueWarnings(item), warns...)
	if s != nil {
		s.Skip = ConsentSkip{}
	}
	return s, warns
}

// text localizes s when it is a known key and returns it unchanged otherwise.
func (f *Factory) text(s string) string {
	if s == "" || f.Strings == nil {
		return s
	}
	if v, ok := f.Strings.Localize(s); ok {
		return v
	}
	return s
}

// localize resolves a built-in key through the injected Localizer, then the defaults.
func (f *Factory) localize(key string) string {
	if f.Strings != nil {
		if v, ok := f.Strings.Localize(key); ok {
			return v
		}
	}
	if v, ok := DefaultStrings.Localize(key); ok {
		return v
	}
	return key
}
