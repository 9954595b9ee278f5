package reviews

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	folioerrors "github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/storage"
)

// Store manages per-book review lists on top of a storage.Store.
type Store struct {
	kv            storage.Store
	seeder        *Seeder
	now           func() time.Time
	locks         *keyLocks
	uniquePerUser bool

	idMu   sync.Mutex
	lastID int64
}

// Option configures a Store.
type Option func(*Store)

// WithSeeder replaces the default synthetic review generator.
func WithSeeder(s *Seeder) Option {
	return func(st *Store) {
		if s != nil {
			st.seeder = s
		}
	}
}

// WithClock sets the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(st *Store) {
		if now != nil {
			st.now = now
		}
	}
}

// WithUniquePerUser rejects a second user-authored review of the same book.
func WithUniquePerUser(enabled bool) Option {
	return func(st *Store) {
		st.uniquePerUser = enabled
	}
}

// NewStore creates a review store persisting to kv.
func NewStore(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		now:   time.Now,
		locks: newKeyLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seeder == nil {
		s.seeder = NewSeeder(nil, s.now)
	}
	return s
}

// List returns the reviews of bookID, seeding and persisting a synthetic set
// sized by size when none are stored.
func (s *Store) List(ctx context.Context, bookID string, size SizeRange) ([]Review, error) {
	if strings.TrimSpace(bookID) == "" {
		return nil, folioerrors.NewValidationError("book", "book id is required")
	}

	unlock := s.locks.Lock(bookID)
	defer unlock()

	list, err := s.load(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		return list, nil
	}

	generated := s.seeder.Generate(bookID, size)
	taken := make(map[int64]bool, len(generated))
	for i := range generated {
		id := generated[i].ID
		for {
			if taken[id] {
				id++
				continue
			}
			exists, err := s.indexed(ctx, id)
			if err != nil {
				return nil, err
			}
			if !exists {
				break
			}
			id++
		}
		taken[id] = true
		generated[i].ID = id
	}

	if err := s.save(ctx, bookID, generated); err != nil {
		return nil, err
	}
	for _, r := range generated {
		if err := s.putIndex(ctx, r.ID, bookID); err != nil {
			return nil, err
		}
	}

	slog.Debug("Seeded synthetic reviews", "book", bookID, "count", len(generated))
	return generated, nil
}

// Create appends a review by user to bookID.
func (s *Store) Create(ctx context.Context, user User, bookID string, rating int, comment string) (Review, error) {
	if strings.TrimSpace(bookID) == "" {
		return Review{}, folioerrors.NewValidationError("book", "book id is required")
	}
	comment, err := validate(rating, comment)
	if err != nil {
		return Review{}, err
	}

	unlock := s.locks.Lock(bookID)
	defer unlock()

	list, err := s.load(ctx, bookID)
	if err != nil {
		return Review{}, err
	}
	if s.uniquePerUser && hasAuthored(list, user.ID) {
		return Review{}, folioerrors.NewConflictError("you have already reviewed this book")
	}

	id, err := s.nextID(ctx, list)
	if err != nil {
		return Review{}, err
	}

	now := s.now().UTC()
	review := Review{
		ID:        id,
		BookID:    bookID,
		User:      user,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}

	list = append(list, review)
	if err := s.save(ctx, bookID, list); err != nil {
		return Review{}, err
	}
	if err := s.putIndex(ctx, id, bookID); err != nil {
		return Review{}, err
	}

	slog.Info("Created review", "id", id, "book", bookID, "user", user.Username, "rating", rating)
	return review, nil
}

// Update replaces the rating and comment of the review with reviewID.
func (s *Store) Update(ctx context.Context, user User, reviewID int64, rating int, comment string) (Review, error) {
	comment, err := validate(rating, comment)
	if err != nil {
		return Review{}, err
	}

	var updated Review
	err = s.mutate(ctx, reviewID, func(list []Review, i int) ([]Review, error) {
		if list[i].User.ID != user.ID {
			return nil, folioerrors.NewForbiddenError("you do not have permission to edit this review")
		}
		now := s.now().UTC()
		if now.Before(list[i].CreatedAt) {
			now = list[i].CreatedAt
		}
		list[i].Rating = rating
		list[i].Comment = comment
		list[i].UpdatedAt = now
		updated = list[i]
		return list, nil
	})
	if err != nil {
		return Review{}, err
	}

	slog.Info("Updated review", "id", reviewID, "book", updated.BookID, "rating", rating)
	return updated, nil
}

// Delete removes the review with reviewID.
func (s *Store) Delete(ctx context.Context, user User, reviewID int64) error {
	var bookID string
	err := s.mutate(ctx, reviewID, func(list []Review, i int) ([]Review, error) {
		if list[i].User.ID != user.ID {
			return nil, folioerrors.NewForbiddenError("you do not have permission to delete this review")
		}
		bookID = list[i].BookID
		out := make([]Review, 0, len(list)-1)
		out = append(out, list[:i]...)
		return append(out, list[i+1:]...), nil
	})
	if err != nil {
		return err
	}

	if err := s.kv.Delete(ctx, indexKey(reviewID)); err != nil {
		return fmt.Errorf("failed to delete review index: %w", err)
	}

	slog.Info("Deleted review", "id", reviewID, "book", bookID)
	return nil
}

// Get returns the review with reviewID. The index is tried first; a missing
// or stale entry falls back to a full scan.
func (s *Store) Get(ctx context.Context, reviewID int64) (Review, error) {
	useIndex := true
	for attempt := 0; attempt < 2; attempt++ {
		bookID, found, err := s.locate(ctx, reviewID, useIndex)
		if err != nil {
			return Review{}, err
		}
		if !found {
			break
		}

		list, err := s.load(ctx, bookID)
		if err != nil {
			return Review{}, err
		}
		if i := indexOf(list, reviewID); i >= 0 {
			return list[i], nil
		}
		useIndex = false
	}
	return Review{}, folioerrors.NewNotFoundError("review", strconv.FormatInt(reviewID, 10))
}

// ListAll returns every stored review, grouped by book in key order.
func (s *Store) ListAll(ctx context.Context) ([]Review, error) {
	var all []Review
	err := s.kv.Scan(ctx, listKeyPrefix, func(key string, value []byte) error {
		if _, ok := bookIDFromKey(key); !ok {
			return nil
		}
		list, err := decode(key, value)
		if err != nil {
			return err
		}
		all = append(all, list...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// HasReviewed reports whether userID has a user-authored review of bookID.
// It never seeds.
func (s *Store) HasReviewed(ctx context.Context, bookID string, userID int) (bool, error) {
	list, err := s.load(ctx, bookID)
	if err != nil {
		return false, err
	}
	return hasAuthored(list, userID), nil
}

// mutate locates reviewID, locks its book and applies fn to the list.
// A stale index entry triggers one retry through a full scan.
func (s *Store) mutate(ctx context.Context, reviewID int64, fn func(list []Review, i int) ([]Review, error)) error {
	useIndex := true
	for attempt := 0; attempt < 2; attempt++ {
		bookID, found, err := s.locate(ctx, reviewID, useIndex)
		if err != nil {
			return err
		}
		if !found {
			break
		}

		done, err := s.mutateBook(ctx, bookID, reviewID, fn)
		if err != nil || done {
			return err
		}
		useIndex = false
	}
	return folioerrors.NewNotFoundError("review", strconv.FormatInt(reviewID, 10))
}

func (s *Store) mutateBook(ctx context.Context, bookID string, reviewID int64, fn func(list []Review, i int) ([]Review, error)) (bool, error) {
	unlock := s.locks.Lock(bookID)
	defer unlock()

	list, err := s.load(ctx, bookID)
	if err != nil {
		return false, err
	}
	i := indexOf(list, reviewID)
	if i < 0 {
		return false, nil
	}

	list, err = fn(list, i)
	if err != nil {
		return false, err
	}
	return true, s.save(ctx, bookID, list)
}

// locate finds the book holding reviewID, through the index when useIndex
// is set and by scanning every list otherwise. A scan hit repairs the index.
func (s *Store) locate(ctx context.Context, reviewID int64, useIndex bool) (string, bool, error) {
	if useIndex {
		data, ok, err := s.kv.Get(ctx, indexKey(reviewID))
		if err != nil {
			return "", false, fmt.Errorf("failed to read review index: %w", err)
		}
		if ok && len(data) > 0 {
			return string(data), true, nil
		}
	}

	var bookID string
	err := s.kv.Scan(ctx, listKeyPrefix, func(key string, value []byte) error {
		id, ok := bookIDFromKey(key)
		if !ok || bookID != "" {
			return nil
		}
		list, err := decode(key, value)
		if err != nil {
			return err
		}
		if indexOf(list, reviewID) >= 0 {
			bookID = id
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if bookID == "" {
		return "", false, nil
	}

	slog.Debug("Repairing review index", "id", reviewID, "book", bookID)
	if err := s.putIndex(ctx, reviewID, bookID); err != nil {
		return "", false, err
	}
	return bookID, true, nil
}

// nextID returns a millisecond timestamp id, strictly greater than any id
// issued before by this store and unused by list and the index.
func (s *Store) nextID(ctx context.Context, list []Review) (int64, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	for {
		if indexOf(list, id) < 0 {
			exists, err := s.indexed(ctx, id)
			if err != nil {
				return 0, err
			}
			if !exists {
				break
			}
		}
		id++
	}
	s.lastID = id
	return id, nil
}

func (s *Store) indexed(ctx context.Context, id int64) (bool, error) {
	_, ok, err := s.kv.Get(ctx, indexKey(id))
	if err != nil {
		return false, fmt.Errorf("failed to read review index: %w", err)
	}
	return ok, nil
}

func (s *Store) putIndex(ctx context.Context, id int64, bookID string) error {
	if err := s.kv.Put(ctx, indexKey(id), []byte(bookID)); err != nil {
		return fmt.Errorf("failed to write review index: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, bookID string) ([]Review, error) {
	key := ListKey(bookID)
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return decode(key, data)
}

func (s *Store) save(ctx context.Context, bookID string, list []Review) error {
	if list == nil {
		list = []Review{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode reviews: %w", err)
	}
	key := ListKey(bookID)
	if err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func decode(key string, data []byte) ([]Review, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var list []Review
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return list, nil
}

func validate(rating int, comment string) (string, error) {
	if rating < MinRating || rating > MaxRating {
		return "", folioerrors.NewValidationError("rating", fmt.Sprintf("must be between %d and %d, got %d", MinRating, MaxRating, rating))
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", folioerrors.NewValidationError("comment", "must not be empty")
	}
	return comment, nil
}
