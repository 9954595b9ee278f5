package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")
	if err.Error() != "slow down" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "slow down")
	}
	if !IsRateLimitError(err) {
		t.Fatalf("IsRateLimitError returned false for RateLimitError")
	}

	wrapped := stdErrors.Join(err)
	if !IsRateLimitError(wrapped) {
		t.Fatalf("IsRateLimitError returned false for wrapped RateLimitError")
	}
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "zero", duration: 0, expected: "rate limited"},
		{name: "30 seconds", duration: 30 * time.Second, expected: "rate limited (retry after 30s)"},
		{name: "2 minutes", duration: 2 * time.Minute, expected: "rate limited (retry after 2m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRateLimitErrorWithRetry("rate limited", tt.duration)
			if err.Error() != tt.expected {
				t.Fatalf("Error message = %q, want %q", err.Error(), tt.expected)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("rating", "must be between 1 and 5")
	if err.Error() != "invalid rating: must be between 1 and 5" {
		t.Fatalf("Error message = %q", err.Error())
	}

	bare := NewValidationError("", "bad input")
	if bare.Error() != "bad input" {
		t.Fatalf("Error message = %q, want %q", bare.Error(), "bad input")
	}

	if !IsValidationError(fmt.Errorf("create review: %w", err)) {
		t.Fatalf("IsValidationError returned false for wrapped ValidationError")
	}
	if IsNotFoundError(err) {
		t.Fatalf("IsNotFoundError returned true for ValidationError")
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("review", "42")
	if err.Error() != "review 42 not found" {
		t.Fatalf("Error message = %q", err.Error())
	}
	if !IsNotFoundError(fmt.Errorf("delete: %w", err)) {
		t.Fatalf("IsNotFoundError returned false for wrapped NotFoundError")
	}
}

func TestFetchError(t *testing.T) {
	transport := stdErrors.New("connection refused")
	err := NewFetchError("googlebooks", "search", transport)

	if err.Error() != "googlebooks search: connection refused" {
		t.Fatalf("Error message = %q", err.Error())
	}
	if !IsFetchError(err) {
		t.Fatalf("IsFetchError returned false for FetchError")
	}
	if !stdErrors.Is(err, transport) {
		t.Fatalf("FetchError does not unwrap to the transport error")
	}

	if NewFetchError("googlebooks", "search", nil) != nil {
		t.Fatalf("NewFetchError with nil error should return nil")
	}
}

func TestAccessErrors(t *testing.T) {
	if !IsConflictError(fmt.Errorf("x: %w", NewConflictError("already reviewed"))) {
		t.Fatalf("IsConflictError returned false for wrapped ConflictError")
	}
	if !IsForbiddenError(NewForbiddenError("not yours")) {
		t.Fatalf("IsForbiddenError returned false for ForbiddenError")
	}
	if !IsAuthError(stdErrors.Join(NewAuthError("bad token"), stdErrors.New("context"))) {
		t.Fatalf("IsAuthError returned false for joined AuthError")
	}
	if IsAuthError(NewForbiddenError("not yours")) {
		t.Fatalf("IsAuthError returned true for ForbiddenError")
	}
}
