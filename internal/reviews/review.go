// Package reviews implements the review store: per-book review lists kept in
// a key-value store, synthetic seeding for books nobody has reviewed yet, and
// create/update/delete for user-authored reviews.
package reviews

import (
	"strconv"
	"strings"
	"time"
)

// User identifies the author of a review.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// DemoUser is the single interactive identity of the demo deployment.
var DemoUser = User{ID: 2, Username: "user1"}

// Review is one rating and comment for a book.
type Review struct {
	ID              int64     `json:"id" yaml:"id"`
	BookID          string    `json:"bookId" yaml:"bookId"`
	User            User      `json:"user" yaml:"user"`
	Rating          int       `json:"rating" yaml:"rating"`
	Comment         string    `json:"comment" yaml:"comment"`
	CreatedAt       time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" yaml:"updatedAt"`
	IsAutoGenerated bool      `json:"isAutoGenerated" yaml:"isAutoGenerated"`
}

// SizeRange bounds the number of synthetic reviews seeded for a book.
type SizeRange struct {
	Min int
	Max int
}

var (
	// ListingRange is used when a book is shown in a search result list.
	ListingRange = SizeRange{Min: 2, Max: 5}
	// DetailRange is used when a single book is shown in detail.
	DetailRange = SizeRange{Min: 3, Max: 7}
)

// normalized clamps the range so at least one review is always seeded.
func (r SizeRange) normalized() SizeRange {
	if r.Min < 1 {
		r.Min = 1
	}
	if r.Max < r.Min {
		r.Max = r.Min
	}
	return r
}

const (
	MinRating = 1
	MaxRating = 5

	listKeyPrefix  = "book:"
	listKeySuffix  = ":reviews"
	indexKeyPrefix = "review:"
)

// ListKey returns the storage key holding the review list of bookID.
func ListKey(bookID string) string {
	return listKeyPrefix + bookID + listKeySuffix
}

// bookIDFromKey reverses ListKey. ok is false for keys that are not review lists.
func bookIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, listKeyPrefix) || !strings.HasSuffix(key, listKeySuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, listKeyPrefix), listKeySuffix)
	return id, id != ""
}

func indexKey(reviewID int64) string {
	return indexKeyPrefix + strconv.FormatInt(reviewID, 10)
}

// Average returns the arithmetic mean of the ratings and whether there were any.
func Average(list []Review) (float64, bool) {
	if len(list) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range list {
		sum += r.Rating
	}
	return float64(sum) / float64(len(list)), true
}

// hasAuthored reports whether userID wrote a non-synthetic review in list.
func hasAuthored(list []Review, userID int) bool {
	for _, r := range list {
		if !r.IsAutoGenerated && r.User.ID == userID {
			return true
		}
	}
	return false
}

func indexOf(list []Review, reviewID int64) int {
	for i, r := range list {
		if r.ID == reviewID {
			return i
		}
	}
	return -1
}
