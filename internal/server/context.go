package server

import (
	"context"

	"github.com/lepinkainen/folio/internal/reviews"
)

type contextKey string

const (
	userKey      contextKey = "user"
	requestIDKey contextKey = "requestID"
)

// UserFrom returns the authenticated user stored by the auth middleware.
func UserFrom(ctx context.Context) (reviews.User, bool) {
	u, ok := ctx.Value(userKey).(reviews.User)
	return u, ok
}

// ContextWithUser returns a new context carrying user.
func ContextWithUser(ctx context.Context, user reviews.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// RequestIDFrom returns the request id assigned by the request id middleware.
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithRequestID returns a new context carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
