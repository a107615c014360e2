// Package survey decodes loosely-typed survey configuration (JSON or YAML records)
// into a typed, immutable item model.
// Every record is decoded once at load time; nothing downstream reads raw keys.
package survey

import "time"

// ItemType is the discriminator carried by every record in its "type" key.
type ItemType string

const (
	TypeInstruction    ItemType = "instruction"
	TypeCompletion     ItemType = "completion"
	TypeSubtask        ItemType = "subtask"
	TypeCompound       ItemType = "compound"
	TypeBoolean        ItemType = "boolean"
	TypeSingleChoice   ItemType = "singleChoiceText"
	TypeMultipleChoice ItemType = "multipleChoiceText"
	TypeScale          ItemType = "scale"
	TypeText           ItemType = "text"
	TypeDate           ItemType = "date"
	TypePermissions    ItemType = "permissions"
	TypeConsentReview  ItemType = "consentReview"
	TypeRegistration   ItemType = "registration"
	TypeLogin          ItemType = "login"
	TypeExternalID     ItemType = "externalID"
	TypeDataGroups     ItemType = "dataGroups"
)

var knownTypes = map[ItemType]bool{
	TypeInstruction:    true,
	TypeCompletion:     true,
	TypeSubtask:        true,
	TypeCompound:       true,
	TypeBoolean:        true,
	TypeSingleChoice:   true,
	TypeMultipleChoice: true,
	TypeScale:          true,
	TypeText:           true,
	TypeDate:           true,
	TypePermissions:    true,
	TypeConsentReview:  true,
	TypeRegistration:   true,
	TypeLogin:          true,
	TypeExternalID:     true,
	TypeDataGroups:     true,
}

// Known reports whether t is one of the built-in item types.
func (t ItemType) Known() bool {
	return knownTypes[t]
}

// IsQuestion reports whether items of this type collect a single answer.
func (t ItemType) IsQuestion() bool {
	switch t {
	case TypeBoolean, TypeSingleChoice, TypeMultipleChoice, TypeScale, TypeText, TypeDate, TypeDataGroups:
		return true
	}
	return false
}

// Item is one decoded configuration record.
type Item struct {
	Identifier string
	Type       ItemType

	Title         string
	Prompt        string
	Detail        string
	Footnote      string
	Image         string // resource name, resolved by the transformer
	LearnMoreHTML string // resource name, resolved by the transformer
	Optional      bool

	NextIdentifier string
	SkipIdentifier string
	SkipIfPassed   bool
	ExpectedAnswer any // nil when absent
	Rules          []RuleDef
	SkipIf         string // jq expression evaluated against session state

	Payload Payload

	// Issues records shape problems found while decoding. Decoding never fails per record.
	Issues []Issue

	// Raw is the record as parsed, kept for custom types and content hashing.
	Raw map[string]any
}

// RuleDef is a navigation rule as declared in configuration.
type RuleDef struct {
	ResultIdentifier string
	SkipTo           string
	Value            any
	Operator         string
}

// Payload is the variant part of an Item. The concrete type depends on Item.Type.
type Payload interface {
	payload()
}

// Choice is one selectable option of a choice question.
type Choice struct {
	Text      string `validate:"required"`
	Value     any
	Detail    string
	Exclusive bool
}

// ChoicePayload backs single/multiple choice and data group items.
type ChoicePayload struct {
	Choices  []Choice `validate:"min=1,dive"`
	Multiple bool
}

// ScalePayload backs integer scale items.
type ScalePayload struct {
	Min      int `validate:"ltefield=Max"`
	Max      int
	Step     int `validate:"gt=0"`
	Default  *int
	MinLabel string
	MaxLabel string
}

// TextPayload backs free-text items.
type TextPayload struct {
	MaxLength   int `validate:"gte=0"`
	Multiline   bool
	Placeholder string
}

// DatePayload backs date items. Nil bounds are open.
type DatePayload struct {
	Min *time.Time
	Max *time.Time
}

// SubtaskPayload wraps a nested ordered sequence of items.
type SubtaskPayload struct {
	Items  []Item `validate:"min=1"`
	Active bool
}

// FormPayload groups several question items on one step.
type FormPayload struct {
	Items []Item `validate:"min=1"`
}

// PermissionsPayload lists the permissions a permissions step requests.
type PermissionsPayload struct {
	Permissions []string
}

// InstructionPayload carries no variant data.
type InstructionPayload struct{}

func (ChoicePayload) payload()      {}
func (ScalePayload) payload()       {}
func (TextPayload) payload()        {}
func (DatePayload) payload()        {}
func (SubtaskPayload) payload()     {}
func (FormPayload) payload()        {}
func (PermissionsPayload) payload() {}
func (InstructionPayload) payload() {}

// IssueCode classifies a decoding issue.
type IssueCode string

const (
	IssueEmptyChoices IssueCode = "empty_choices"
	IssueInvalidScale IssueCode = "invalid_scale"
	IssueInvalidField IssueCode = "invalid_field"
	IssueMissingField IssueCode = "missing_field"
	IssueInvalidRule  IssueCode = "invalid_rule"
	IssueUnknownType  IssueCode = "unknown_type"
)

// Issue is a non-fatal configuration problem found on one record.
type Issue struct {
	Code    IssueCode
	Field   string
	Message string
}

// HasIssue reports whether the item carries an issue with the given code.
func (it *Item) HasIssue(code IssueCode) bool {
	for _, is := range it.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

// Children returns nested items for subtask and compound records.
func (it *Item) Children() []Item {
	switch p := it.Payload.(type) {
	case SubtaskPayload:
		return p.Items
	case FormPayload:
		return p.Items
	}
	return nil
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	out.Rules = append([]RuleDef(nil), it.Rules...)
	out.Issues = append([]Issue(nil), it.Issues...)
	out.Raw = cloneMap(it.Raw)
	out.ExpectedAnswer = cloneValue(it.ExpectedAnswer)

	switch p := it.Payload.(type) {
	case ChoicePayload:
		p.Choices = append([]Choice(nil), p.Choices...)
		out.Payload = p
	case ScalePayload:
		if p.Default != nil {
			d := *p.Default
			p.Default = &d
		}
		out.Payload = p
	case DatePayload:
		if p.Min != nil {
			m := *p.Min
			p.Min = &m
		}
		if p.Max != nil {
			m := *p.Max
			p.Max = &m
		}
		out.Payload = p
	case SubtaskPayload:
		p.Items = cloneItems(p.Items)
		out.Payload = p
	case FormPayload:
		p.Items = cloneItems(p.Items)
		out.Payload = p
	case PermissionsPayload:
		p.Permissions = append([]string(nil), p.Permissions...)
		out.Payload = p
	}
	return out
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Document is a parsed survey document.
type Document struct {
	Identifier  string
	Title       string
	Steps       []Item
	InsertSteps []Item
}
