package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kbukum/shopstream/errors"
)

// FieldError is a validation failure for one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator collects field errors.
type Validator struct {
	errors []FieldError
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{}
}

// AddError records a failure for field.
func (v *Validator) AddError(field, message string) *Validator {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
	return v
}

// Errors returns the recorded failures.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns nil when nothing failed, otherwise an INVALID_INPUT
// AppError listing every failure.
func (v *Validator) Validate() error {
	if len(v.errors) == 0 {
		return nil
	}
	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s %s", e.Field, e.Message)
	}
	return errors.InvalidInput(v.errors[0].Field, strings.Join(messages, "; ")).
		WithDetail("fields", v.errors)
}

// Required fails when value is blank.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// MaxLength fails when value has more than maxLen characters.
func (v *Validator) MaxLength(field, value string, maxLen int) *Validator {
	if utf8.RuneCountInString(value) > maxLen {
		v.AddError(field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
	return v
}

// Username fails when a non-empty value contains characters outside the
// user name alphabet.
func (v *Validator) Username(field, value string) *Validator {
	if value != "" && !usernamePattern.MatchString(value) {
		v.AddError(field, "may only contain letters, digits, spaces, dots, dashes and underscores")
	}
	return v
}

// Custom fails with message when condition is false.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}
