// Package auth issues and verifies tokens for the single demo account.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/reviews"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTTL = 24 * time.Hour
	issuer     = "folio"
)

// Token is the result of a successful login.
type Token struct {
	Token     string       `json:"token"`
	User      reviews.User `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Claims are the JWT claims carried by a folio token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Options configures a Service.
type Options struct {
	Secret   string
	TTL      time.Duration
	Username string
	// Password is hashed at startup unless PasswordHash is set.
	Password     string
	PasswordHash string
	UserID       int
	// Cost is the bcrypt cost used when hashing Password.
	Cost int
	Now  func() time.Time
}

// Service authenticates the demo user.
type Service struct {
	secret []byte
	ttl    time.Duration
	hash   []byte
	user   reviews.User
	now    func() time.Time
}

// NewService creates a Service from opts.
func NewService(opts Options) (*Service, error) {
	if opts.Secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}
	if opts.Username == "" {
		return nil, fmt.Errorf("auth username is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.UserID == 0 {
		opts.UserID = reviews.DemoUser.ID
	}

	hash := opts.PasswordHash
	if hash == "" {
		if opts.Password == "" {
			return nil, fmt.Errorf("auth password or password hash is required")
		}
		h, err := HashPassword(opts.Password, opts.Cost)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	return &Service{
		secret: []byte(opts.Secret),
		ttl:    opts.TTL,
		hash:   []byte(hash),
		user:   reviews.User{ID: opts.UserID, Username: opts.Username},
		now:    opts.Now,
	}, nil
}

// User returns the identity this service authenticates.
func (s *Service) User() reviews.User {
	return s.user
}

// Login checks the credentials and issues a signed token.
func (s *Service) Login(_ context.Context, username, password string) (Token, error) {
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.user.Username)) != 1 {
		return Token{}, errors.NewAuthError("unable to log in with provided credentials")
	}
	if !VerifyPassword(string(s.hash), password) {
		return Token{}, errors.NewAuthError("unable to log in with provided credentials")
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Username: s.user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(s.user.ID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("signing token: %w", err)
	}

	return Token{Token: signed, User: s.user, ExpiresAt: expires.UTC().Truncate(time.Second)}, nil
}

// Verify parses a token issued by Login and returns its user.
func (s *Service) Verify(token string) (reviews.User, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return reviews.User{}, errors.NewAuthError("invalid token: " + err.Error())
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return reviews.User{}, errors.NewAuthError("invalid token claims")
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return reviews.User{}, errors.NewAuthError("invalid token subject")
	}
	return reviews.User{ID: id, Username: claims.Username}, nil
}

// ParseAuthorization extracts the token from an Authorization header value.
// Both "Bearer <t>" and "Token <t>" are accepted.
func ParseAuthorization(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	if strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "Token") {
		return token, true
	}
	return "", false
}

// HashPassword hashes password with bcrypt. A cost of 0 uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
