// Package openlibrary is a catalog.Source backed by the OpenLibrary search
// and works APIs.
package openlibrary

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
	defaultBaseURL       = "https://openlibrary.org"
	defaultCoversURL     = "https://covers.openlibrary.org"
	sourceName           = "openlibrary"
	searchFields         = "key,title,author_name,subject,first_publish_year,ratings_average,cover_i"
	defaultRatePerSecond = 1
)

// Compile-time check that Client implements catalog.Source.
var _ catalog.Source = (*Client)(nil)

// Client is an OpenLibrary API client.
type Client struct {
	baseURL   string
	coversURL string
	cache     *cache.CacheDB
	httpOpts  []httpclient.Option
	http      *httpclient.Client
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

// WithCoversURL sets a custom base URL for cover images.
func WithCoversURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.coversURL = strings.TrimSuffix(base, "/")
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

// NewClient creates a new OpenLibrary client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		coversURL: defaultCoversURL,
		httpOpts: []httpclient.Option{
			httpclient.WithRateLimiter(ratelimit.New("OpenLibrary", defaultRatePerSecond)),
			httpclient.WithHeader("User-Agent", "folio (https://github.com/lepinkainen/folio)"),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = httpclient.New("OpenLibrary", c.httpOpts...)
	return c
}

// Name returns the source name used in errors and cache invalidation.
func (c *Client) Name() string {
	return sourceName
}

// Search returns up to limit works matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	key := fmt.Sprintf("search|%s|%d", query, limit)
	return cacheOrFetch(ctx, c.cache, key, nil, func(ctx context.Context) ([]catalog.Record, error) {
		docs, err := c.search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		records := make([]catalog.Record, 0, len(docs))
		for _, d := range docs {
			records = append(records, d.toRecord(c.coversURL))
		}
		return records, nil
	})
}

// Volume returns the work with id ("OL45883W" or "/works/OL45883W").
func (c *Client) Volume(ctx context.Context, id string) (catalog.Record, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "/works/")

	cached, err := cacheOrFetch(ctx, c.cache, "work|"+id, func(v cachedWork) bool { return v.NotFound },
		func(ctx context.Context) (cachedWork, error) {
			return c.fetchWork(ctx, id)
		})
	if err != nil {
		return catalog.Record{}, err
	}
	if cached.NotFound {
		return catalog.Record{}, errors.NewNotFoundError("book", id)
	}
	return cached.Record, nil
}

type cachedWork struct {
	Record   catalog.Record `json:"record"`
	NotFound bool           `json:"not_found"`
}

func cacheOrFetch[T any](ctx context.Context, db *cache.CacheDB, key string, isNotFound func(T) bool, fetch cache.FetchFunc[T]) (T, error) {
	var selector func(T) time.Duration
	if isNotFound != nil {
		selector = cache.SelectNegativeCacheTTL(db, isNotFound)
	}
	v, _, err := cache.GetOrFetch(ctx, db, cache.OpenLibraryTable, key, fetch, selector)
	return v, err
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]searchDoc, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", searchFields)
	endpoint := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())

	var resp searchResponse
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Docs, nil
}

func (c *Client) fetchWork(ctx context.Context, id string) (cachedWork, error) {
	endpoint := fmt.Sprintf("%s/works/%s.json", c.baseURL, url.PathEscape(id))

	var w work
	if err := c.http.GetJSON(ctx, endpoint, &w); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return cachedWork{NotFound: true}, nil
		}
		return cachedWork{}, err
	}

	rec := w.toRecord(id, c.coversURL)

	// The works document only links authors by key; the search index has
	// their names and the community rating.
	docs, err := c.search(ctx, "key:/works/"+id, 1)
	if err != nil {
		return cachedWork{}, err
	}
	if len(docs) > 0 {
		d := docs[0]
		rec.Authors = d.AuthorName
		rec.AverageRating = d.RatingsAverage
		// Search results carry the year as a number; prefer it so list
		// and detail views agree.
		if d.FirstPublishYear > 0 {
			rec.PublishedDate = strconv.Itoa(d.FirstPublishYear)
		}
		if rec.CoverURL == "" {
			rec.CoverURL = coverURL(c.coversURL, d.CoverID)
		}
	}

	return cachedWork{Record: rec}, nil
}

func coverURL(base string, id int) string {
	if id <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/b/id/%d-M.jpg", base, id)
}
