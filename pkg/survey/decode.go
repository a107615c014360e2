package survey

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Format selects the document syntax.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// DetectFormat picks a format from the file extension, falling back to sniffing the content.
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// ParseDocument decodes a survey document. The root is either an array of records
// or an object with "steps" and optional "insertSteps", "identifier" and "title".
func ParseDocument(data []byte, format Format) (*Document, error) {
	var root any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
		root = normalize(root)
	default:
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
	}

	doc := &Document{}
	switch r := root.(type) {
	case []any:
		doc.Steps = decodeList(r)
	case map[string]any:
		doc.Identifier = str(r, "identifier", "taskIdentifier")
		doc.Title = str(r, "title")
		steps, ok := r["steps"].([]any)
		if !ok {
			return nil, fmt.Errorf("document: 'steps' must be an array")
		}
		doc.Steps = decodeList(steps)
		if inserts, ok := r["insertSteps"].([]any); ok {
			doc.InsertSteps = decodeList(inserts)
		}
	default:
		return nil, fmt.Errorf("document: root must be an array or an object, got %T", root)
	}
	return doc, nil
}

// ParseJSON decodes a JSON document and returns its top-level steps.
func ParseJSON(data []byte) ([]Item, error) {
	doc, err := ParseDocument(data, FormatJSON)
	if err != nil {
		return nil, err
	}
	return doc.Steps, nil
}

// ParseYAML decodes a YAML document and returns its top-level steps.
func ParseYAML(data []byte) ([]Item, error) {
	doc, err := ParseDocument(data, FormatYAML)
	if err != nil {
		return nil, err
	}
	return doc.Steps, nil
}

// Decode turns one raw record into an Item. It never fails; problems are recorded in Item.Issues.
func Decode(raw map[string]any) Item {
	it := Item{Raw: raw}

	it.Type = ItemType(str(raw, "type", "surveyItemType"))
	if it.Type == "" {
		it.Type = TypeInstruction
	}

	it.Identifier = str(raw, "identifier")
	if it.Identifier == "" {
		it.Identifier = contentIdentifier(raw)
	}

	it.Title = str(raw, "title")
	it.Prompt = str(raw, "prompt", "text")
	it.Detail = str(raw, "detailText")
	it.Footnote = str(raw, "footnote")
	it.Image = str(raw, "image", "imageName")
	it.LearnMoreHTML = str(raw, "learnMoreHTML", "learnMoreHTMLContentURL")
	it.Optional = boolean(raw, "optional")

	it.NextIdentifier = str(raw, "nextIdentifier")
	it.SkipIdentifier = str(raw, "skipIdentifier")
	it.SkipIfPassed = boolean(raw, "skipIfPassed")
	it.ExpectedAnswer, _ = value(raw, "expectedAnswer")
	it.SkipIf = str(raw, "skipIf")
	it.decodeRules(raw["rules"])

	switch it.Type {
	case TypeSingleChoice, TypeMultipleChoice, TypeDataGroups:
		it.Payload = ChoicePayload{
			Choices:  it.decodeChoices(raw["items"]),
			Multiple: it.Type == TypeMultipleChoice || (it.Type == TypeDataGroups && boolean(raw, "allowMultiple")),
		}
	case TypeScale:
		it.Payload = it.decodeScale(raw)
	case TypeText:
		p := TextPayload{
			Multiline:   boolean(raw, "multipleLines", "multiline"),
			Placeholder: str(raw, "placeholder"),
		}
		if v, ok := value(raw, "maxLength"); ok {
			if n, ok := Integer(v); ok {
				p.MaxLength = n
			} else {
				it.addIssue(IssueInvalidField, "maxLength", "maxLength must be an integer")
			}
		}
		it.Payload = p
	case TypeDate:
		it.Payload = it.decodeDate(raw)
	case TypeSubtask:
		children, _ := value(raw, "steps", "items")
		it.Payload = SubtaskPayload{
			Items:  it.decodeChildren("steps", children),
			Active: boolean(raw, "active") || str(raw, "taskType") == "active",
		}
	case TypeCompound:
		it.Payload = FormPayload{Items: it.decodeChildren("items", raw["items"])}
	case TypePermissions:
		it.Payload = PermissionsPayload{Permissions: decodeStrings(raw["items"], "identifier", "permissionType")}
	default:
		if !it.Type.Known() {
			it.addIssue(IssueUnknownType, "type", fmt.Sprintf("unknown item type '%s'", it.Type))
		}
		it.Payload = InstructionPayload{}
	}

	validatePayload(&it)
	return it
}

func decodeList(list []any) []Item {
	items := make([]Item, 0, len(list))
	for _, elem := range list {
		raw, ok := elem.(map[string]any)
		if !ok {
			// Bare strings are shorthand for an instruction with that text.
			if s, isString := elem.(string); isString {
				raw = map[string]any{"type": string(TypeInstruction), "text": s}
			} else {
				continue
			}
		}
		items = append(items, Decode(raw))
	}
	return items
}

func (it *Item) decodeChildren(field string, v any) []Item {
	if v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		it.addIssue(IssueInvalidField, field, fmt.Sprintf("'%s' must be an array of records", field))
		return nil
	}
	return decodeList(list)
}

func (it *Item) decodeRules(v any) {
	if v == nil {
		return
	}
	list, ok := v.([]any)
	if !ok {
		it.addIssue(IssueInvalidRule, "rules", "'rules' must be an array")
		return
	}
	for i, elem := range list {
		m, ok := elem.(map[string]any)
		if !ok {
			it.addIssue(IssueInvalidRule, "rules", fmt.Sprintf("rule %d is not an object", i))
			continue
		}
		rule := RuleDef{
			ResultIdentifier: str(m, "resultIdentifier"),
			SkipTo:           str(m, "skipIdentifier", "skipTo"),
			Operator:         str(m, "operator", "ruleOperator"),
		}
		rule.Value, _ = value(m, "value", "expectedAnswer")
		if rule.SkipTo == "" {
			it.addIssue(IssueInvalidRule, "rules", fmt.Sprintf("rule %d has no skipIdentifier", i))
			continue
		}
		it.Rules = append(it.Rules, rule)
	}
}

func (it *Item) decodeChoices(v any) []Choice {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	choices := make([]Choice, 0, len(list))
	for i, elem := range list {
		switch c := elem.(type) {
		case string:
			choices = append(choices, Choice{Text: c, Value: c})
		case map[string]any:
			choice := Choice{
				Text:      str(c, "text", "prompt"),
				Detail:    str(c, "detailText", "detail"),
				Exclusive: boolean(c, "exclusive", "isExclusive"),
			}
			choice.Value, _ = value(c, "value")
			if choice.Value == nil {
				choice.Value = choice.Text
			}
			choices = append(choices, choice)
		default:
			if elem == nil {
				it.addIssue(IssueInvalidField, "items", fmt.Sprintf("choice %d is null", i))
				continue
			}
			// Numbers and booleans are both label and value.
			choices = append(choices, Choice{Text: fmt.Sprintf("%v", elem), Value: elem})
		}
	}
	return choices
}

func (it *Item) decodeScale(raw map[string]any) ScalePayload {
	src := raw
	if r, ok := raw["range"].(map[string]any); ok {
		src = r
	}
	p := ScalePayload{
		Step:     1,
		MinLabel: str(src, "minLabel", "minimumValueDescription"),
		MaxLabel: str(src, "maxLabel", "maximumValueDescription"),
	}

	minV, hasMin := value(src, "min", "minimum")
	maxV, hasMax := value(src, "max", "maximum")
	if !hasMin || !hasMax {
		it.addIssue(IssueInvalidScale, "range", "scale requires both min and max")
		return p
	}
	var ok bool
	if p.Min, ok = Integer(minV); !ok {
		it.addIssue(IssueInvalidScale, "min", fmt.Sprintf("scale min %v is not an integer", minV))
	}
	if p.Max, ok = Integer(maxV); !ok {
		it.addIssue(IssueInvalidScale, "max", fmt.Sprintf("scale max %v is not an integer", maxV))
	}
	if stepV, has := value(src, "step", "stepInterval"); has {
		if p.Step, ok = Integer(stepV); !ok {
			it.addIssue(IssueInvalidScale, "step", fmt.Sprintf("scale step %v is not an integer", stepV))
			p.Step = 1
		}
	}
	if defV, has := value(src, "default", "defaultValue"); has {
		d, ok := Integer(defV)
		switch {
		case !ok:
			it.addIssue(IssueInvalidScale, "default", fmt.Sprintf("scale default %v is not an integer", defV))
		case d < p.Min || d > p.Max:
			it.addIssue(IssueInvalidScale, "default", fmt.Sprintf("scale default %d is outside [%d, %d]", d, p.Min, p.Max))
		default:
			p.Default = &d
		}
	}
	return p
}

func (it *Item) decodeDate(raw map[string]any) DatePayload {
	src := raw
	if r, ok := raw["range"].(map[string]any); ok {
		src = r
	}
	var p DatePayload
	if v, ok := value(src, "min", "minDate"); ok {
		if t, ok := Date(v); ok {
			p.Min = &t
		} else {
			it.addIssue(IssueInvalidField, "min", fmt.Sprintf("date min %v is not a valid date", v))
		}
	}
	if v, ok := value(src, "max", "maxDate"); ok {
		if t, ok := Date(v); ok {
			p.Max = &t
		} else {
			it.addIssue(IssueInvalidField, "max", fmt.Sprintf("date max %v is not a valid date", v))
		}
	}
	if p.Min != nil && p.Max != nil && p.Max.Before(*p.Min) {
		it.addIssue(IssueInvalidField, "range", "date max is before min")
		p.Max = nil
	}
	return p
}

func decodeStrings(v any, keys ...string) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, elem := range list {
		switch e := elem.(type) {
		case string:
			out = append(out, e)
		case map[string]any:
			if s := str(e, keys...); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (it *Item) addIssue(code IssueCode, field, message string) {
	it.Issues = append(it.Issues, Issue{Code: code, Field: field, Message: message})
}

// identifierSpace namespaces content-derived identifiers.
var identifierSpace = uuid.NameSpaceOID

// contentIdentifier derives an identifier from the record content.
// Structurally different records can still collide if their canonical encodings do.
func contentIdentifier(raw map[string]any) string {
	data, err := json.Marshal(raw)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", raw))
	}
	return uuid.NewSHA1(identifierSpace, data).String()
}

// normalize converts YAML's map[any]any nodes into map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprintf("%v", k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}
