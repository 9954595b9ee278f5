package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/reviews"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, now func() time.Time) *Service {
	t.Helper()
	svc, err := NewService(Options{
		Secret:   "test-secret",
		TTL:      time.Hour,
		Username: "user1",
		Password: "password123",
		UserID:   2,
		Cost:     bcrypt.MinCost,
		Now:      now,
	})
	assert.NoError(t, err)
	return svc
}

func TestLoginAndVerify(t *testing.T) {
	svc := newTestService(t, func() time.Time { return testNow })

	tok, err := svc.Login(context.Background(), "user1", "password123")
	assert.NoError(t, err)
	assert.Equal(t, reviews.DemoUser, tok.User)
	assert.Equal(t, testNow.Add(time.Hour), tok.ExpiresAt)
	assert.True(t, tok.Token != "")

	user, err := svc.Verify(tok.Token)
	assert.NoError(t, err)
	assert.Equal(t, reviews.DemoUser, user)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "user1", password: "nope"},
		{name: "wrong user", username: "admin", password: "password123"},
		{name: "empty", username: "", password: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.username, tt.password)
			assert.True(t, errors.IsAuthError(err))
		})
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	now := testNow
	svc := newTestService(t, func() time.Time { return now })

	tok, err := svc.Login(context.Background(), "user1", "password123")
	assert.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = svc.Verify(tok.Token)
	assert.True(t, errors.IsAuthError(err))
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	svc := newTestService(t, nil)

	other, err := NewService(Options{Secret: "other", Username: "user1", Password: "password123", Cost: bcrypt.MinCost})
	assert.NoError(t, err)
	foreign, err := other.Login(context.Background(), "user1", "password123")
	assert.NoError(t, err)

	_, err = svc.Verify(foreign.Token)
	assert.True(t, errors.IsAuthError(err))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "user1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.NoError(t, err)
	_, err = svc.Verify(none)
	assert.True(t, errors.IsAuthError(err))

	_, err = svc.Verify("garbage")
	assert.True(t, errors.IsAuthError(err))
}

func TestParseAuthorization(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Token abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := ParseAuthorization(tt.header)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.token, token)
	}
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(Options{Username: "u", Password: "p"})
	assert.Error(t, err)

	_, err = NewService(Options{Secret: "s", Password: "p"})
	assert.Error(t, err)

	_, err = NewService(Options{Secret: "s", Username: "u"})
	assert.Error(t, err)

	hash, err := HashPassword("pw", bcrypt.MinCost)
	assert.NoError(t, err)
	svc, err := NewService(Options{Secret: "s", Username: "u", PasswordHash: hash})
	assert.NoError(t, err)
	assert.Equal(t, reviews.User{ID: 2, Username: "u"}, svc.User())
	_, err = svc.Login(context.Background(), "u", "pw")
	assert.NoError(t, err)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("password123", bcrypt.MinCost)
	assert.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "password123"))
	assert.False(t, VerifyPassword(hash, "password124"))
}
