// Package server exposes the catalog and review store over a JSON HTTP API.
package server

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lepinkainen/folio/internal/auth"
	"github.com/lepinkainen/folio/internal/catalog"
	"github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/ratelimit"
	"github.com/lepinkainen/folio/internal/reviews"
)

const shutdownTimeout = 10 * time.Second

var emptyReviews = []reviews.Review{}

// Catalog searches and fetches books with their reviews.
type Catalog interface {
	Search(ctx context.Context, query string) ([]catalog.Book, error)
	GetByID(ctx context.Context, id string) (catalog.Book, error)
}

// ReviewStore is the review persistence used by the API.
type ReviewStore interface {
	List(ctx context.Context, bookID string, size reviews.SizeRange) ([]reviews.Review, error)
	Get(ctx context.Context, reviewID int64) (reviews.Review, error)
	Create(ctx context.Context, user reviews.User, bookID string, rating int, comment string) (reviews.Review, error)
	Update(ctx context.Context, user reviews.User, reviewID int64, rating int, comment string) (reviews.Review, error)
	Delete(ctx context.Context, user reviews.User, reviewID int64) error
	ListAll(ctx context.Context) ([]reviews.Review, error)
}

// Authenticator issues and verifies tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (auth.Token, error)
	Verify(token string) (reviews.User, error)
}

// Options tunes the server.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	CORSOrigins    []string
	DetailRange    reviews.SizeRange
	// TrustProxy keys rate limiting on X-Forwarded-For. Enable only behind
	// a proxy that sets the header.
	TrustProxy bool
}

// Server is the HTTP API.
type Server struct {
	catalog     Catalog
	reviews     ReviewStore
	auth        Authenticator
	opts        Options
	detailRange reviews.SizeRange
	limiter     *ratelimit.Keyed
}

// New creates a Server.
func New(cat Catalog, store ReviewStore, authn Authenticator, opts Options) *Server {
	if opts.DetailRange == (reviews.SizeRange{}) {
		opts.DetailRange = reviews.DetailRange
	}
	s := &Server{
		catalog:     cat,
		reviews:     store,
		auth:        authn,
		opts:        opts,
		detailRange: opts.DetailRange,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = ratelimit.NewKeyed(opts.RateLimitRPS, opts.RateLimitBurst, 5*time.Minute)
	}
	return s
}

// Handler returns the routed API with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api-token-auth/", s.handleLogin)

	mux.HandleFunc("GET /books", s.handleSearchBooks)
	mux.HandleFunc("GET /books/{id}", s.handleGetBook)
	mux.HandleFunc("GET /books/{id}/reviews", s.handleBookReviews)

	mux.HandleFunc("GET /reviews", s.handleAllReviews)
	mux.HandleFunc("GET /reviews/{id}", s.handleGetReview)
	mux.Handle("POST /reviews", s.requireAuth(http.HandlerFunc(s.handleCreateReview)))
	mux.Handle("PUT /reviews/{id}", s.requireAuth(http.HandlerFunc(s.handleUpdateReview)))
	mux.Handle("DELETE /reviews/{id}", s.requireAuth(http.HandlerFunc(s.handleDeleteReview)))

	mws := []Middleware{RequestID, AccessLog, Recover, CORS(s.opts.CORSOrigins)}
	if s.limiter != nil {
		mws = append(mws, RateLimit(s.limiter, s.opts.TrustProxy))
	}
	mws = append(mws, MaxBody(s.opts.MaxBodyBytes))
	return Chain(mux, mws...)
}

// requireAuth accepts "Bearer <t>" and "Token <t>" authorization headers.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.ParseAuthorization(r.Header.Get("Authorization"))
		if !ok {
			respondErr(w, r, errors.NewAuthError("authentication credentials were not provided"))
			return
		}
		user, err := s.auth.Verify(token)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stdErrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
