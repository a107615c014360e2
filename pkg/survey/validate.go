package survey

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validatePayload checks the struct-level constraints of the decoded payload
// and converts violations into item issues.
func validatePayload(it *Item) {
	if it.Payload == nil {
		return
	}
	if _, ok := it.Payload.(InstructionPayload); ok {
		return
	}
	if rangeRejected(it) {
		return
	}

	err := validate.Struct(it.Payload)
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		it.addIssue(IssueInvalidField, "", err.Error())
		return
	}
	for _, fe := range verrs {
		it.Issues = append(it.Issues, issueFor(it, fe))
	}
}

// rangeRejected reports whether decoding already rejected the scale range.
// A bad default alone leaves the range to the struct checks.
func rangeRejected(it *Item) bool {
	for _, is := range it.Issues {
		if is.Code == IssueInvalidScale && is.Field != "default" {
			return true
		}
	}
	return false
}

func issueFor(it *Item, fe validator.FieldError) Issue {
	switch fe.StructField() {
	case "Choices":
		return Issue{Code: IssueEmptyChoices, Field: "items",
			Message: fmt.Sprintf("%s item '%s' declares no choices", it.Type, it.Identifier)}
	case "Items":
		return Issue{Code: IssueMissingField, Field: "items",
			Message: fmt.Sprintf("%s item '%s' has no nested items", it.Type, it.Identifier)}
	case "Text":
		return Issue{Code: IssueInvalidField, Field: "items",
			Message: fmt.Sprintf("choice %s has no text", fe.Namespace())}
	case "Min", "Max", "Step":
		return Issue{Code: IssueInvalidScale, Field: "range",
			Message: fmt.Sprintf("scale %s failed '%s' (%v)", fe.StructField(), fe.Tag(), fe.Value())}
	}
	return Issue{Code: IssueInvalidField, Field: fe.Field(),
		Message: fmt.Sprintf("field %s failed '%s'", fe.Namespace(), fe.Tag())}
}
