package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lepinkainen/folio/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestGetJSONDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "folio-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"name":"folio"}`))
	}))
	defer server.Close()

	c := New("test", WithHeader("User-Agent", "folio-test"))
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "folio", out.Name)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var delays []time.Duration
	c := New("test", WithAttempts(3), WithSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}))

	var out map[string]any
	require.NoError(t, c.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestGetJSONSingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	slept := false
	c := New("test", WithSleep(func(context.Context, time.Duration) error {
		slept = true
		return nil
	}))

	err := c.GetJSON(context.Background(), server.URL, &struct{}{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, slept)
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such volume", http.StatusNotFound)
	}))
	defer server.Close()

	err := New("test", WithAttempts(3), WithSleep(noSleep)).GetJSON(context.Background(), server.URL, &struct{}{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "no such volume")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := New("books", WithSleep(noSleep)).GetJSON(context.Background(), server.URL, &struct{}{})
	require.True(t, errors.IsRateLimitError(err))

	var rl *errors.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
}

func TestGetJSONGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := New("test", WithAttempts(2), WithSleep(noSleep)).GetJSON(context.Background(), server.URL, &struct{}{})
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSONBadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	err := New("test").GetJSON(context.Background(), server.URL, &struct{}{})
	assert.ErrorContains(t, err, "decoding response")
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(1))
	assert.Equal(t, 4*time.Second, backoffDelay(3))
	assert.Equal(t, maxBackoff, backoffDelay(8))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
	assert.Greater(t, parseRetryAfter(time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)), time.Duration(0))
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
