package errors

import (
	stdErrors "errors"
	"fmt"
)

// FetchError wraps a failed call to an upstream collaborator (book metadata
// or authentication). The transport error stays reachable through Unwrap.
type FetchError struct {
	Source string
	Op     string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a FetchError. A nil err yields nil.
func NewFetchError(source, op string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Source: source, Op: op, Err: err}
}

// IsFetchError reports whether err is a FetchError (even when wrapped).
func IsFetchError(err error) bool {
	var fErr *FetchError
	return stdErrors.As(err, &fErr)
}
