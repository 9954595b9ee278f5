package errors

import (
	stdErrors "errors"
	"fmt"
)

// NotFoundError is returned when a review or book does not exist.
type NotFoundError struct {
	Kind string // "review", "book"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFoundError reports whether err is a NotFoundError (even when wrapped).
func IsNotFoundError(err error) bool {
	var nfErr *NotFoundError
	return stdErrors.As(err, &nfErr)
}
