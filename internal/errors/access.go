package errors

import (
	stdErrors "errors"
)

// ConflictError is returned when a write would duplicate existing data,
// e.g. a second review of the same book by the same user.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflictError creates a ConflictError.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// IsConflictError reports whether err is a ConflictError (even when wrapped).
func IsConflictError(err error) bool {
	var cErr *ConflictError
	return stdErrors.As(err, &cErr)
}

// ForbiddenError is returned when a user modifies a review they did not write.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// NewForbiddenError creates a ForbiddenError.
func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// IsForbiddenError reports whether err is a ForbiddenError (even when wrapped).
func IsForbiddenError(err error) bool {
	var fErr *ForbiddenError
	return stdErrors.As(err, &fErr)
}

// AuthError is returned for rejected credentials or tokens.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// NewAuthError creates an AuthError.
func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

// IsAuthError reports whether err is an AuthError (even when wrapped).
func IsAuthError(err error) bool {
	var aErr *AuthError
	return stdErrors.As(err, &aErr)
}
