// Package httpclient holds the JSON GET plumbing shared by the catalog
// source clients: rate limiting, retries with backoff and status mapping.
package httpclient

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/ratelimit"
)

const (
	// DefaultAttempts is one: a failed fetch reaches the caller immediately.
	DefaultAttempts = 1
	DefaultTimeout  = 10 * time.Second
	maxBackoff      = 10 * time.Second
)

// Doer is an interface for making HTTP requests.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses other than 429.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return stdErrors.As(err, &se) && se.Code == code
}

// Client performs rate limited, time-boxed JSON GET requests.
type Client struct {
	name     string
	http     Doer
	limiter  *ratelimit.Limiter
	attempts int
	sleep    func(context.Context, time.Duration) error
	header   http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithDoer sets a custom HTTP client.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithRateLimiter sets the limiter waited on before every request.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithAttempts sets the maximum number of tries per request. The default is
// a single try.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// New creates a Client. name is used in log lines and rate limit errors.
func New(name string, opts ...Option) *Client {
	c := &Client{
		name:     name,
		http:     &http.Client{Timeout: DefaultTimeout},
		limiter:  ratelimit.Unlimited(name),
		attempts: DefaultAttempts,
		sleep:    sleepContext,
		header:   http.Header{"Accept": []string{"application/json"}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches endpoint and decodes the body into target. HTTP 429 becomes
// a RateLimitError. With WithAttempts(n > 1), transport timeouts, connection
// errors and 5xx responses are retried with exponential backoff.
func (c *Client) GetJSON(ctx context.Context, endpoint string, target any) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err := c.do(ctx, endpoint, target)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.attempts {
			return err
		}

		delay := backoffDelay(attempt)
		slog.Debug("Retrying request", "client", c.name, "attempt", attempt, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, endpoint string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.NewRateLimitErrorWithRetry(
			fmt.Sprintf("%s rate limit exceeded", c.name),
			parseRetryAfter(resp.Header.Get("Retry-After")),
		)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var se *StatusError
	if stdErrors.As(err, &se) {
		return se.Code >= 500
	}
	var urlErr *url.Error
	if stdErrors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		var opErr *net.OpError
		if stdErrors.As(urlErr, &opErr) {
			return true
		}
		// Network errors (connection resets etc.)
		return strings.Contains(urlErr.Error(), "connection")
	}
	return false
}

func backoffDelay(attempt int) time.Duration {
	// exponential backoff capped at 10 seconds
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
