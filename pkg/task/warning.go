package task

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dlovans/surveytask/pkg/survey"
)

// WarningCode classifies a configuration or navigation warning.
type WarningCode string

const (
	WarnUnknownType         WarningCode = "unknown_type"
	WarnEmptyChoices        WarningCode = "empty_choices"
	WarnInvalidScale        WarningCode = "invalid_scale"
	WarnInvalidField        WarningCode = "invalid_field"
	WarnMissingField        WarningCode = "missing_field"
	WarnInvalidRule         WarningCode = "invalid_rule"
	WarnInvalidSkipIf       WarningCode = "invalid_skip_if"
	WarnDroppedItem         WarningCode = "dropped_item"
	WarnFallbackInstruction WarningCode = "fallback_instruction"
	WarnDuplicateIdentifier WarningCode = "duplicate_identifier"
	WarnDanglingTarget      WarningCode = "dangling_target"
	WarnNavigationLoop      WarningCode = "navigation_loop"
	WarnWalkLimit           WarningCode = "walk_limit"
)

// Warning is a recovered fault. Assembly, navigation and synthesis never fail
// on bad configuration; they degrade and report what they did.
type Warning struct {
	Code       WarningCode `json:"code"`
	Identifier string      `json:"identifier,omitempty"`
	Message    string      `json:"message"`
}

func (w Warning) String() string {
	if w.Identifier == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Code, w.Identifier, w.Message)
}

var issueCodes = map[survey.IssueCode]WarningCode{
	survey.IssueEmptyChoices: WarnEmptyChoices,
	survey.IssueInvalidScale: WarnInvalidScale,
	survey.IssueInvalidField: WarnInvalidField,
	survey.IssueMissingField: WarnMissingField,
	survey.IssueInvalidRule:  WarnInvalidRule,
	survey.IssueUnknownType:  WarnUnknownType,
}

func issueWarnings(item survey.Item) []Warning {
	if len(item.Issues) == 0 {
		return nil
	}
	warns := make([]Warning, 0, len(item.Issues))
	for _, is := range item.Issues {
		code, ok := issueCodes[is.Code]
		if !ok {
			code = WarnInvalidField
		}
		warns = append(warns, Warning{Code: code, Identifier: item.Identifier, Message: is.Message})
	}
	return warns
}

func logWarnings(logger *zap.Logger, warns []Warning) {
	for _, w := range warns {
		logger.Warn(w.Message,
			zap.String("code", string(w.Code)),
			zap.String("identifier", w.Identifier),
		)
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
