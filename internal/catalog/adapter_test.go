package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	folioerrors "github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/reviews"
	"github.com/lepinkainen/folio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	args := m.Called(ctx, query, limit)
	recs, _ := args.Get(0).([]Record)
	return recs, args.Error(1)
}

func (m *mockSource) Volume(ctx context.Context, id string) (Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(Record)
	return rec, args.Error(1)
}

// fixedLister returns canned review lists and records the ranges it saw.
type fixedLister struct {
	mu     sync.Mutex
	lists  map[string][]reviews.Review
	ranges map[string]reviews.SizeRange
	err    error
}

func (f *fixedLister) List(_ context.Context, bookID string, size reviews.SizeRange) ([]reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ranges == nil {
		f.ranges = make(map[string]reviews.SizeRange)
	}
	f.ranges[bookID] = size
	if f.err != nil {
		return nil, f.err
	}
	return f.lists[bookID], nil
}

func ratings(bookID string, rs ...int) []reviews.Review {
	out := make([]reviews.Review, len(rs))
	for i, r := range rs {
		out[i] = reviews.Review{ID: int64(i + 1), BookID: bookID, Rating: r, Comment: "c"}
	}
	return out
}

func TestSearchFoldsReviewsInOrder(t *testing.T) {
	src := new(mockSource)
	src.On("Search", mock.Anything, "dune", 20).Return([]Record{
		{ID: "a", Title: "Dune"},
		{ID: "b", Title: "Dune Messiah"},
		{ID: "c", Title: "Children of Dune"},
	}, nil)

	lister := &fixedLister{lists: map[string][]reviews.Review{
		"a": ratings("a", 4, 5, 3),
		"b": ratings("b", 2),
		"c": ratings("c", 5, 5),
	}}

	books, err := NewAdapter(src, lister).Search(context.Background(), "  dune ")
	require.NoError(t, err)
	require.Len(t, books, 3)

	assert.Equal(t, []string{"a", "b", "c"}, []string{books[0].ID, books[1].ID, books[2].ID})
	assert.InDelta(t, 4.0, books[0].AverageRating, 1e-9)
	assert.InDelta(t, 2.0, books[1].AverageRating, 1e-9)
	assert.InDelta(t, 5.0, books[2].AverageRating, 1e-9)
	assert.Len(t, books[0].Reviews, 3)
	assert.Equal(t, reviews.ListingRange, lister.ranges["a"])
	src.AssertExpectations(t)
}

func TestSearchBlankQueryUsesDefault(t *testing.T) {
	src := new(mockSource)
	src.On("Search", mock.Anything, DefaultQuery, 20).Return([]Record{}, nil).Once()
	src.On("Search", mock.Anything, "subject:poetry", 5).Return([]Record{}, nil).Once()

	books, err := NewAdapter(src, &fixedLister{}).Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, books)

	adapter := NewAdapter(src, &fixedLister{}, WithDefaultQuery("subject:poetry"), WithLimit(5))
	_, err = adapter.Search(context.Background(), "")
	require.NoError(t, err)
	src.AssertExpectations(t)
}

func TestSearchSourceErrorIsFetchError(t *testing.T) {
	upstream := errors.New("connection refused")
	src := new(mockSource)
	src.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, upstream)

	_, err := NewAdapter(src, &fixedLister{}).Search(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, folioerrors.IsFetchError(err))
	assert.ErrorIs(t, err, upstream)

	var fetchErr *folioerrors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "mock", fetchErr.Source)
	assert.Equal(t, "search", fetchErr.Op)
}

func TestSearchReviewErrorPropagates(t *testing.T) {
	storeErr := errors.New("disk full")
	src := new(mockSource)
	src.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]Record{{ID: "a"}}, nil)

	_, err := NewAdapter(src, &fixedLister{err: storeErr}).Search(context.Background(), "x")
	assert.ErrorIs(t, err, storeErr)
	assert.False(t, folioerrors.IsFetchError(err))
}

func TestGetByIDUsesDetailRange(t *testing.T) {
	native := 3.5
	src := new(mockSource)
	src.On("Volume", mock.Anything, "vol-9").Return(Record{ID: "vol-9", Title: "Solo", AverageRating: &native}, nil)

	lister := &fixedLister{}
	book, err := NewAdapter(src, lister).GetByID(context.Background(), "vol-9")
	require.NoError(t, err)

	assert.Equal(t, "Solo", book.Title)
	assert.Equal(t, reviews.DetailRange, lister.ranges["vol-9"])
	assert.InDelta(t, 3.5, book.AverageRating, 1e-9, "falls back to native rating without reviews")
}

func TestGetByIDNotFound(t *testing.T) {
	src := new(mockSource)
	src.On("Volume", mock.Anything, "nope").Return(nil, folioerrors.NewNotFoundError("book", "nope"))

	_, err := NewAdapter(src, &fixedLister{}).GetByID(context.Background(), "nope")
	assert.True(t, folioerrors.IsNotFoundError(err))
	assert.True(t, folioerrors.IsFetchError(err))
}

func TestGetByIDRequiresID(t *testing.T) {
	_, err := NewAdapter(new(mockSource), &fixedLister{}).GetByID(context.Background(), " ")
	assert.True(t, folioerrors.IsValidationError(err))
}

func TestSearchWithReviewStoreSeedsOnce(t *testing.T) {
	store := reviews.NewStore(testutil.MemoryStore(t))
	src := new(mockSource)
	src.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]Record{{ID: "s1"}, {ID: "s2"}}, nil)

	adapter := NewAdapter(src, store, WithConcurrency(1))
	first, err := adapter.Search(context.Background(), "q")
	require.NoError(t, err)
	second, err := adapter.Search(context.Background(), "q")
	require.NoError(t, err)

	for i := range first {
		n := len(first[i].Reviews)
		assert.GreaterOrEqual(t, n, reviews.ListingRange.Min)
		assert.LessOrEqual(t, n, reviews.ListingRange.Max)
		assert.Equal(t, first[i].Reviews, second[i].Reviews)
		assert.Equal(t, first[i].AverageRating, second[i].AverageRating)
	}
}

func TestRefoldRecomputesAverage(t *testing.T) {
	store := reviews.NewStore(testutil.MemoryStore(t))
	ctx := context.Background()
	src := new(mockSource)
	adapter := NewAdapter(src, store)

	_, err := store.Create(ctx, reviews.DemoUser, "r1", 1, "bad")
	require.NoError(t, err)
	book, err := adapter.Refold(ctx, Normalize(Record{ID: "r1"}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, book.AverageRating, 1e-9)

	_, err = store.Create(ctx, reviews.DemoUser, "r1", 5, "good")
	require.NoError(t, err)
	book, err = adapter.Refold(ctx, book)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, book.AverageRating, 1e-9)
}
