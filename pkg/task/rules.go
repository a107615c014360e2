package task

import (
	"fmt"

	"github.com/dlovans/surveytask/pkg/survey"
)

// Operator is the comparison a navigation rule applies to a result.
type Operator string

const (
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "ne"
	OpLess         Operator = "lt"
	OpGreater      Operator = "gt"
	OpLessEqual    Operator = "le"
	OpGreaterEqual Operator = "ge"
	OpSkipped      Operator = "skip" // no answer was given
	OpAlways       Operator = "any"
)

var operatorAliases = map[string]Operator{
	"":            OpEqual,
	"eq":          OpEqual,
	"equal":       OpEqual,
	"==":          OpEqual,
	"ne":          OpNotEqual,
	"notEqual":    OpNotEqual,
	"!=":          OpNotEqual,
	"lt":          OpLess,
	"lessThan":    OpLess,
	"<":           OpLess,
	"gt":          OpGreater,
	"greaterThan": OpGreater,
	">":           OpGreater,
	"le":          OpLessEqual,
	"<=":          OpLessEqual,
	"ge":          OpGreaterEqual,
	">=":          OpGreaterEqual,
	"skip":        OpSkipped,
	"any":         OpAlways,
	"always":      OpAlways,
	"otherwise":   OpAlways,
}

// ParseOperator maps a configured operator name to an Operator.
func ParseOperator(name string) (Operator, bool) {
	op, ok := operatorAliases[name]
	return op, ok
}

// NavigationRule is a (predicate, target) pair. Rules on a step are evaluated
// in declaration order and the first match wins.
type NavigationRule struct {
	// ResultIdentifier selects a form field (or a sibling step) to test.
	// Empty means the step's own answer.
	ResultIdentifier string   `json:"resultIdentifier,omitempty"`
	Operator         Operator `json:"operator"`
	Value            any      `json:"value,omitempty"`
	Target           string   `json:"target"`
}

// Matches evaluates the predicate against a result. A missing result never
// matches, except for the skip and any operators.
func (r NavigationRule) Matches(result *StepResult) bool {
	switch r.Operator {
	case OpAlways:
		return true
	case OpSkipped:
		return result == nil || result.Answer == nil
	}
	if result == nil || result.Answer == nil {
		return false
	}

	answer := result.Answer
	switch r.Operator {
	case OpEqual:
		return answerEquals(answer, r.Value)
	case OpNotEqual:
		return !answerEquals(answer, r.Value)
	case OpLess:
		return compareNumeric(unwrap(answer), unwrap(r.Value), func(x, y float64) bool { return x < y })
	case OpGreater:
		return compareNumeric(unwrap(answer), unwrap(r.Value), func(x, y float64) bool { return x > y })
	case OpLessEqual:
		return compareNumeric(unwrap(answer), unwrap(r.Value), func(x, y float64) bool { return x <= y })
	case OpGreaterEqual:
		return compareNumeric(unwrap(answer), unwrap(r.Value), func(x, y float64) bool { return x >= y })
	}
	return false
}

func (r NavigationRule) String() string {
	if r.ResultIdentifier != "" {
		return fmt.Sprintf("%s %s %v -> %s", r.ResultIdentifier, r.Operator, r.Value, r.Target)
	}
	return fmt.Sprintf("answer %s %v -> %s", r.Operator, r.Value, r.Target)
}

// navigationRules converts configured rules, or the expectedAnswer shorthand when
// no explicit rules exist. Unknown operators are dropped with a warning.
func navigationRules(item survey.Item) ([]NavigationRule, []Warning) {
	var warns []Warning
	if len(item.Rules) == 0 {
		if item.ExpectedAnswer == nil {
			return nil, nil
		}
		// Without skipIfPassed the skip fires when the expected answer is NOT given.
		op := OpNotEqual
		if item.SkipIfPassed {
			op = OpEqual
		}
		target := item.SkipIdentifier
		if target == "" {
			target = ExitIdentifier
		}
		return []NavigationRule{{Operator: op, Value: item.ExpectedAnswer, Target: target}}, nil
	}

	rules := make([]NavigationRule, 0, len(item.Rules))
	for i, def := range item.Rules {
		op, ok := ParseOperator(def.Operator)
		if !ok {
			warns = append(warns, Warning{
				Code:       WarnInvalidRule,
				Identifier: item.Identifier,
				Message:    fmt.Sprintf("rule %d uses unknown operator '%s'", i, def.Operator),
			})
			continue
		}
		rules = append(rules, NavigationRule{
			ResultIdentifier: def.ResultIdentifier,
			Operator:         op,
			Value:            def.Value,
			Target:           def.SkipTo,
		})
	}
	return rules, warns
}

// answerEquals compares an answer to an expected literal.
// Single-element arrays compare as their element. A multi-valued answer equals
// a scalar when it contains it, and equals an array when both hold the same values.
func answerEquals(answer, expected any) bool {
	answerList, answerIsList := asList(answer)
	expectedList, expectedIsList := asList(expected)

	if answerIsList && len(answerList) == 1 {
		answer, answerIsList = answerList[0], false
	}
	if expectedIsList && len(expectedList) == 1 {
		expected, expectedIsList = expectedList[0], false
	}

	switch {
	case answerIsList && expectedIsList:
		if len(answerList) != len(expectedList) {
			return false
		}
		for _, e := range expectedList {
			if !containsValue(answerList, e) {
				return false
			}
		}
		return true
	case answerIsList:
		return containsValue(answerList, expected)
	case expectedIsList:
		return false
	default:
		return compareEqual(answer, expected)
	}
}

// compareEqual checks equality with numeric coercion.
// nil == nil is true, nil == anything_else is false.
func compareEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	aNum, aOk := survey.Number(a)
	bNum, bOk := survey.Number(b)
	if aOk && bOk {
		return aNum == bNum
	}
	if aOk != bOk {
		return false
	}

	ab, aIsBool := a.(bool)
	bb, bIsBool := b.(bool)
	if aIsBool || bIsBool {
		return aIsBool && bIsBool && ab == bb
	}

	if ad, ok := a.(DateComponents); ok {
		return dateEquals(ad, b)
	}
	if bd, ok := b.(DateComponents); ok {
		return dateEquals(bd, a)
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareNumeric compares two values numerically.
// Returns false if either value is nil or non-numeric.
func compareNumeric(a, b any, cmp func(float64, float64) bool) bool {
	if a == nil || b == nil {
		return false
	}
	aNum, aOk := survey.Number(a)
	bNum, bOk := survey.Number(b)
	if !aOk || !bOk {
		return false
	}
	return cmp(aNum, bNum)
}

func dateEquals(d DateComponents, v any) bool {
	if o, ok := v.(DateComponents); ok {
		return d == o
	}
	t, ok := survey.Date(v)
	return ok && d == DateOf(t)
}

func containsValue(list []any, v any) bool {
	for _, e := range list {
		if compareEqual(e, v) {
			return true
		}
	}
	return false
}

func unwrap(v any) any {
	if list, ok := asList(v); ok && len(list) == 1 {
		return list[0]
	}
	return v
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
