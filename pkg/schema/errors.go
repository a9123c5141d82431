package schema

import "fmt"

// Rule names the check that rejected a document.
type Rule string

const (
	RuleRequired Rule = "required"
	RuleNullable Rule = "nullable"
	RuleType     Rule = "type"
	RuleFormat   Rule = "format"
	RulePair     Rule = "pair"
)

// ValidationError reports the first rule a document broke. Message is
// meant to be shown to the caller as is.
type ValidationError struct {
	Field   string
	Rule    Rule
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func errRequired(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Rule:    RuleRequired,
		Message: fmt.Sprintf("Validation error - require field %q", field),
	}
}

func errNotNullable(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Rule:    RuleNullable,
		Message: fmt.Sprintf("Trying to set None to not-nullable field %q", field),
	}
}

func errWrongType(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Rule:    RuleType,
		Message: fmt.Sprintf("Wrong type for field %q", field),
	}
}

func errFormat(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Rule: RuleFormat, Message: msg}
}

func errNoPair() *ValidationError {
	return &ValidationError{Rule: RulePair, Message: "No required pair"}
}
