// Package lint provides static analysis for survey documents.
// It detects configuration problems without assembling or navigating the task.
package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/dlovans/surveytask/pkg/resource"
	"github.com/dlovans/surveytask/pkg/survey"
)

// Issue represents a problem found during static analysis.
type Issue struct {
	Severity   string `json:"severity"` // "error", "warning", "info"
	Identifier string `json:"identifier,omitempty"`
	Check      string `json:"check"`
	Message    string `json:"message"`
}

// Result contains all issues found by the linter.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// Check names.
const (
	CheckDuplicate      = "duplicate_identifier"
	CheckDangling       = "dangling_target"
	CheckSelfTarget     = "self_target"
	CheckEmptyChoices   = "empty_choices"
	CheckUnknownType    = "unknown_type"
	CheckSkipIf         = "invalid_skip_if"
	CheckItem           = "item"
	CheckCollapse       = "single_subtask"
	CheckResource       = "missing_resource"
	CheckUnreachable    = "unreachable"
	CheckEmptyContainer = "empty_container"
)

// Options configures optional checks.
type Options struct {
	// Resources, when set, enables checks that images and HTML documents resolve.
	Resources resource.Resolver
}

// Run parses a JSON or YAML document and lints it.
func Run(text string, opts Options) (*Result, error) {
	data := []byte(text)
	doc, err := survey.ParseDocument(data, survey.DetectFormat("", data))
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return Document(doc, opts), nil
}

// Document lints an already parsed document.
func Document(doc *survey.Document, opts Options) *Result {
	result := &Result{
		Valid:  true,
		Issues: make([]Issue, 0),
	}
	l := &linter{result: result, opts: opts}

	// Insert steps share the top-level scope once spliced.
	top := append(append([]survey.Item(nil), doc.Steps...), doc.InsertSteps...)
	l.scope("", top, doc.Steps)

	if len(doc.Steps) == 1 && doc.Steps[0].Type == survey.TypeSubtask && len(doc.InsertSteps) == 0 {
		result.addInfo(doc.Steps[0].Identifier, CheckCollapse,
			fmt.Sprintf("task consists of the single subtask '%s' and will be collapsed into its steps", doc.Steps[0].Identifier))
	}
	return result
}

type linter struct {
	result *Result
	opts   Options
}

// scope checks one sequence of sibling items. prefix qualifies identifiers in messages.
func (l *linter) scope(prefix string, items, ordered []survey.Item) {
	ids := make(map[string]int)
	for _, it := range items {
		ids[it.Identifier]++
	}
	var dups []string
	for id, n := range ids {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	for _, id := range dups {
		l.result.addError(prefix+id, CheckDuplicate,
			fmt.Sprintf("identifier '%s' is used by %d items in the same scope", prefix+id, ids[id]))
	}

	targeted := make(map[string]bool)
	for _, it := range items {
		for _, target := range targets(it) {
			targeted[target] = true
		}
	}

	for i, it := range items {
		l.item(prefix, it, ids)
		// Items after an unconditional jump are reachable only as targets.
		if i > 0 && i < len(ordered) {
			prev := ordered[i-1]
			if prev.NextIdentifier != "" && prev.NextIdentifier != it.Identifier && !targeted[it.Identifier] {
				l.result.addWarning(prefix+it.Identifier, CheckUnreachable,
					fmt.Sprintf("'%s' follows '%s', which always jumps to '%s', and is never targeted",
						prefix+it.Identifier, prefix+prev.Identifier, prev.NextIdentifier))
			}
		}
	}
}

func (l *linter) item(prefix string, it survey.Item, siblings map[string]int) {
	id := prefix + it.Identifier

	for _, is := range it.Issues {
		switch is.Code {
		case survey.IssueEmptyChoices:
			l.result.addError(id, CheckEmptyChoices, is.Message)
		case survey.IssueUnknownType:
			l.result.addWarning(id, CheckUnknownType, is.Message+"; it will be shown as an instruction")
		case survey.IssueMissingField:
			l.result.addWarning(id, CheckEmptyContainer, is.Message)
		default:
			l.result.addWarning(id, CheckItem, fmt.Sprintf("%s: %s", is.Field, is.Message))
		}
	}

	for _, target := range targets(it) {
		switch {
		case target == "exit":
		case target == it.Identifier && target == it.NextIdentifier:
			l.result.addWarning(id, CheckSelfTarget, fmt.Sprintf("'%s' always navigates to itself", id))
		case siblings[target] > 0:
		case strings.Contains(target, "."):
			// Qualified targets address steps inside subtasks; resolved at runtime.
		default:
			l.result.addError(id, CheckDangling,
				fmt.Sprintf("navigation target '%s' does not exist in this scope", target))
		}
	}

	if it.SkipIf != "" {
		if _, err := gojq.Parse(it.SkipIf); err != nil {
			l.result.addError(id, CheckSkipIf, fmt.Sprintf("skipIf '%s' does not parse: %v", it.SkipIf, err))
		}
	}

	if r := l.opts.Resources; r != nil {
		if it.Image != "" {
			if _, ok := r.ImageNamed(it.Image); !ok {
				l.result.addWarning(id, CheckResource, fmt.Sprintf("image '%s' not found", it.Image))
			}
		}
		if it.LearnMoreHTML != "" {
			if _, ok := r.HTMLNamed(it.LearnMoreHTML); !ok {
				l.result.addWarning(id, CheckResource, fmt.Sprintf("learn-more document '%s' not found", it.LearnMoreHTML))
			}
		}
	}

	switch p := it.Payload.(type) {
	case survey.SubtaskPayload:
		l.scope(id+".", p.Items, p.Items)
	case survey.FormPayload:
		// Field rules navigate from the form, so their targets live in the form's scope.
		for _, child := range p.Items {
			l.field(id, child, siblings)
		}
	}
}

func (l *linter) field(formID string, child survey.Item, siblings map[string]int) {
	id := formID + "." + child.Identifier
	if !child.Type.IsQuestion() {
		l.result.addWarning(id, CheckItem, fmt.Sprintf("form field has non-question type '%s' and will be dropped", child.Type))
	}
	for _, is := range child.Issues {
		l.result.addWarning(id, CheckItem, fmt.Sprintf("%s: %s", is.Field, is.Message))
	}
	for _, target := range targets(child) {
		if target != "exit" && siblings[target] == 0 && !strings.Contains(target, ".") {
			l.result.addError(id, CheckDangling,
				fmt.Sprintf("navigation target '%s' does not exist in the form's scope", target))
		}
	}
}

// targets lists every identifier an item can navigate to.
func targets(it survey.Item) []string {
	var out []string
	if it.NextIdentifier != "" {
		out = append(out, it.NextIdentifier)
	}
	if it.SkipIdentifier != "" {
		out = append(out, it.SkipIdentifier)
	}
	for _, r := range it.Rules {
		out = append(out, r.SkipTo)
	}
	return out
}

func (r *Result) addError(identifier, check, message string) {
	r.Valid = false
	r.Issues = append(r.Issues, Issue{
		Severity:   "error",
		Identifier: identifier,
		Check:      check,
		Message:    message,
	})
}

func (r *Result) addWarning(identifier, check, message string) {
	r.Issues = append(r.Issues, Issue{
		Severity:   "warning",
		Identifier: identifier,
		Check:      check,
		Message:    message,
	})
}

func (r *Result) addInfo(identifier, check, message string) {
	r.Issues = append(r.Issues, Issue{
		Severity:   "info",
		Identifier: identifier,
		Check:      check,
		Message:    message,
	})
}
