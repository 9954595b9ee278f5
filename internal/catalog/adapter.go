package catalog

import (
	"context"
	"log/slog"
	"strings"

	folioerrors "github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/reviews"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQuery       = "subject:fiction"
	defaultLimit       = 20
	defaultConcurrency = 4
)

// ReviewLister is the part of the review store the adapter needs.
type ReviewLister interface {
	List(ctx context.Context, bookID string, size reviews.SizeRange) ([]reviews.Review, error)
}

// Adapter combines a metadata Source with the review store.
type Adapter struct {
	source       Source
	reviews      ReviewLister
	defaultQuery string
	limit        int
	concurrency  int
	listing      reviews.SizeRange
	detail       reviews.SizeRange
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDefaultQuery sets the query used for blank searches.
func WithDefaultQuery(q string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(q) != "" {
			a.defaultQuery = q
		}
	}
}

// WithLimit sets the maximum number of search results.
func WithLimit(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.limit = n
		}
	}
}

// WithConcurrency bounds the number of review lists loaded in parallel.
func WithConcurrency(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithSeedRanges overrides the listing and detail seeding sizes.
func WithSeedRanges(listing, detail reviews.SizeRange) Option {
	return func(a *Adapter) {
		a.listing = listing
		a.detail = detail
	}
}

// NewAdapter creates an Adapter.
func NewAdapter(source Source, lister ReviewLister, opts ...Option) *Adapter {
	a := &Adapter{
		source:       source,
		reviews:      lister,
		defaultQuery: DefaultQuery,
		limit:        defaultLimit,
		concurrency:  defaultConcurrency,
		listing:      reviews.ListingRange,
		detail:       reviews.DetailRange,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SourceName returns the name of the metadata source.
func (a *Adapter) SourceName() string {
	return a.source.Name()
}

// Search queries the source and attaches reviews to each result, keeping the
// source's order. A blank query uses the default query.
func (a *Adapter) Search(ctx context.Context, query string) ([]Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = a.defaultQuery
	}

	records, err := a.source.Search(ctx, query, a.limit)
	if err != nil {
		return nil, folioerrors.NewFetchError(a.source.Name(), "search", err)
	}

	books := make([]Book, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			book := Normalize(rec)
			if book.ID == "" {
				books[i] = book.WithReviews(nil)
				return nil
			}
			list, err := a.reviews.List(gctx, book.ID, a.listing)
			if err != nil {
				return err
			}
			books[i] = book.WithReviews(list)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("Catalog search", "source", a.source.Name(), "query", query, "results", len(books))
	return books, nil
}

// GetByID fetches one book and attaches its reviews. A missing volume is a
// FetchError wrapping a NotFoundError.
func (a *Adapter) GetByID(ctx context.Context, id string) (Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Book{}, folioerrors.NewValidationError("id", "book id is required")
	}

	rec, err := a.source.Volume(ctx, id)
	if err != nil {
		return Book{}, folioerrors.NewFetchError(a.source.Name(), "volume", err)
	}
	if rec.ID == "" {
		rec.ID = id
	}

	book := Normalize(rec)
	list, err := a.reviews.List(ctx, book.ID, a.detail)
	if err != nil {
		return Book{}, err
	}
	return book.WithReviews(list), nil
}

// Refold re-reads the reviews of b and recomputes its average.
func (a *Adapter) Refold(ctx context.Context, b Book) (Book, error) {
	list, err := a.reviews.List(ctx, b.ID, a.detail)
	if err != nil {
		return Book{}, err
	}
	return b.WithReviews(list), nil
}
