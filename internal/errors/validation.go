// Package errors defines the error taxonomy shared by the review store, the
// catalog adapter and the HTTP server.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ValidationError is returned when caller input is rejected before any
// state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is a ValidationError (even when wrapped).
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return stdErrors.As(err, &vErr)
}
