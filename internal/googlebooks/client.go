// Package googlebooks is a catalog.Source backed by the Google Books API.
package googlebooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/folio/internal/cache"
	"github.com/lepinkainen/folio/internal/catalog"
	"github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/httpclient"
	"github.com/lepinkainen/folio/internal/ratelimit"
)

const (
	defaultBaseURL       = "https://www.googleapis.com/books/v1"
	defaultRatePerSecond = 5
	sourceName           = "googlebooks"
)

// Compile-time check that Client implements catalog.Source.
var _ catalog.Source = (*Client)(nil)

// Client is a Google Books API client.
type Client struct {
	apiKey   string
	baseURL  string
	cache    *cache.CacheDB
	httpOpts []httpclient.Option
	http     *httpclient.Client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(d httpclient.Doer) Option {
	return func(c *Client) {
		c.httpOpts = append(c.httpOpts, httpclient.WithDoer(d))
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpOpts = append(c.httpOpts, httpclient.WithDoer(&http.Client{Timeout: d}))
		}
	}
}

// WithRateLimiter sets a custom rate limiter for the client.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.httpOpts = append(c.httpOpts, httpclient.WithRateLimiter(l))
	}
}

// WithRetryAttempts sets the number of attempts for failed requests.
func WithRetryAttempts(n int) Option {
	return func(c *Client) {
		c.httpOpts = append(c.httpOpts, httpclient.WithAttempts(n))
	}
}

// WithCache enables response caching.
func WithCache(db *cache.CacheDB) Option {
	return func(c *Client) {
		c.cache = db
	}
}

// withSleep replaces the retry backoff sleep in tests.
func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.httpOpts = append(c.httpOpts, httpclient.WithSleep(fn))
	}
}

// NewClient creates a new Google Books client. apiKey may be empty.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpOpts: []httpclient.Option{
			httpclient.WithRateLimiter(ratelimit.New("GoogleBooks", defaultRatePerSecond)),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = httpclient.New("GoogleBooks", c.httpOpts...)
	return c
}

// Name returns the source name used in errors and cache invalidation.
func (c *Client) Name() string {
	return sourceName
}

// Search returns up to limit volumes matching query, in API order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	// The API caps maxResults at 40.
	if limit > 40 {
		limit = 40
	}

	key := fmt.Sprintf("%s|%d", query, limit)
	records, _, err := cache.GetOrFetch(ctx, c.cache, cache.GoogleBooksSearchTable, key,
		func(ctx context.Context) ([]catalog.Record, error) {
			return c.fetchSearch(ctx, query, limit)
		}, nil)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Volume returns the volume with id. A missing volume is a NotFoundError.
func (c *Client) Volume(ctx context.Context, id string) (catalog.Record, error) {
	cached, _, err := cache.GetOrFetch(ctx, c.cache, cache.GoogleBooksVolumeTable, id,
		func(ctx context.Context) (cachedVolume, error) {
			return c.fetchVolume(ctx, id)
		}, cache.SelectNegativeCacheTTL(c.cache, func(v cachedVolume) bool {
			return v.NotFound
		}))
	if err != nil {
		return catalog.Record{}, err
	}
	if cached.NotFound {
		return catalog.Record{}, errors.NewNotFoundError("book", id)
	}
	return cached.Record, nil
}

// cachedVolume wraps a record with metadata for caching.
type cachedVolume struct {
	Record   catalog.Record `json:"record"`
	NotFound bool           `json:"not_found"`
}

func (c *Client) fetchSearch(ctx context.Context, query string, limit int) ([]catalog.Record, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())

	var resp volumesResponse
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	records := make([]catalog.Record, 0, len(resp.Items))
	for _, item := range resp.Items {
		records = append(records, item.toRecord())
	}
	return records, nil
}

func (c *Client) fetchVolume(ctx context.Context, id string) (cachedVolume, error) {
	endpoint := fmt.Sprintf("%s/volumes/%s", c.baseURL, url.PathEscape(id))
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	var item volume
	if err := c.http.GetJSON(ctx, endpoint, &item); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return cachedVolume{NotFound: true}, nil
		}
		return cachedVolume{}, err
	}
	return cachedVolume{Record: item.toRecord()}, nil
}
