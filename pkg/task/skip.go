package task

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/itchyny/gojq"
)

// SessionState is the state outside the task that skip rules consult.
// It is passed in explicitly; nothing is read from globals.
type SessionState struct {
	Permissions     map[string]bool `json:"permissions,omitempty"`
	ConsentVerified bool            `json:"consentVerified"`
	Reconsent       bool            `json:"reconsent"`
	Registered      bool            `json:"registered"`
	LoggedIn        bool            `json:"loggedIn"`
	ExternalID      string          `json:"externalID,omitempty"`
	DataGroups      []string        `json:"dataGroups,omitempty"`
	Values          map[string]any  `json:"values,omitempty"`
}

// Granted reports whether a permission has been granted.
func (s *SessionState) Granted(permission string) bool {
	return s != nil && s.Permissions[permission]
}

// SkipRule decides whether a step is elided given state outside the step itself.
type SkipRule interface {
	ShouldSkip(state *SessionState, results *TaskResultSet) bool
	String() string
}

// PermissionsSkip skips a permissions step when every requested permission is granted.
type PermissionsSkip struct {
	Permissions []string
}

func (r PermissionsSkip) ShouldSkip(state *SessionState, _ *TaskResultSet) bool {
	for _, p := range r.Permissions {
		if !state.Granted(p) {
			return false
		}
	}
	return true
}

func (r PermissionsSkip) String() string {
	return "permissions granted: " + strings.Join(r.Permissions, ",")
}

// ConsentSkip skips consent steps once consent is verified, unless reconsenting.
type ConsentSkip struct{}

func (ConsentSkip) ShouldSkip(state *SessionState, _ *TaskResultSet) bool {
	return state != nil && state.ConsentVerified && !state.Reconsent
}

func (ConsentSkip) String() string { return "consent verified" }

// RegistrationSkip skips registration for an already registered participant.
type RegistrationSkip struct{}

func (RegistrationSkip) ShouldSkip(state *SessionState, _ *TaskResultSet) bool {
	return state != nil && state.Registered
}

func (RegistrationSkip) String() string { return "registered" }

// LoginSkip skips login when a session already exists.
type LoginSkip struct{}

func (LoginSkip) ShouldSkip(state *SessionState, _ *TaskResultSet) bool {
	return state != nil && state.LoggedIn
}

func (LoginSkip) String() string { return "logged in" }

// ExternalIDSkip skips external ID entry when one is already set.
type ExternalIDSkip struct{}

func (ExternalIDSkip) ShouldSkip(state *SessionState, _ *TaskResultSet) bool {
	return state != nil && state.ExternalID != ""
}

func (ExternalIDSkip) String() string { return "external id set" }

// ExpressionSkip skips a step when a jq expression evaluates truthy.
// The expression sees {"state": <SessionState>, "answers": <identifier -> answer>}.
type ExpressionSkip struct {
	Source string
	code   *gojq.Code
}

// NewExpressionSkip parses and compiles a jq expression.
func NewExpressionSkip(source string) (*ExpressionSkip, error) {
	parsed, err := gojq.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid skipIf expression %q: %w", source, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compile skipIf expression %q: %w", source, err)
	}
	return &ExpressionSkip{Source: source, code: code}, nil
}

// ShouldSkip runs the expression. Runtime errors and empty output mean "don't skip".
func (r *ExpressionSkip) ShouldSkip(state *SessionState, results *TaskResultSet) bool {
	if r == nil || r.code == nil {
		return false
	}
	if state == nil {
		state = &SessionState{}
	}
	input, err := normalizeForJQ(map[string]any{
		"state":   state,
		"answers": results.Answers(),
	})
	if err != nil {
		return false
	}

	iter := r.code.Run(input)
	v, ok := iter.Next()
	if !ok {
		return false
	}
	if _, isErr := v.(error); isErr {
		return false
	}
	return truthy(v)
}

func (r *ExpressionSkip) String() string { return "skipIf " + r.Source }

// AnySkip skips when any of its rules does.
type AnySkip []SkipRule

func (rs AnySkip) ShouldSkip(state *SessionState, results *TaskResultSet) bool {
	for _, r := range rs {
		if r.ShouldSkip(state, results) {
			return true
		}
	}
	return false
}

func (rs AnySkip) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, " | ")
}

func combineSkips(rules ...SkipRule) SkipRule {
	var out AnySkip
	for _, r := range rules {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// truthy follows jq: only false and null are falsy.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// normalizeForJQ converts an arbitrary Go value into the JSON-compatible types gojq accepts.
func normalizeForJQ(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}
