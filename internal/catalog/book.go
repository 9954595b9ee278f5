// Package catalog turns raw metadata records from a book source into Books
// and folds their reviews in.
package catalog

import (
	"context"
	"strings"

	"github.com/lepinkainen/folio/internal/reviews"
)

// Defaults applied when a record lacks a field.
const (
	DefaultTitle       = "Unknown Title"
	DefaultAuthor      = "Unknown Author"
	DefaultGenre       = "Fiction"
	DefaultDescription = "No description available."
)

// Record is a raw metadata entry as returned by a Source.
type Record struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Categories    []string `json:"categories"`
	PublishedDate string   `json:"publishedDate"`
	AverageRating *float64 `json:"averageRating,omitempty"`
	CoverURL      string   `json:"coverUrl"`
	Description   string   `json:"description"`
}

// Source is an external book metadata service.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Record, error)
	Volume(ctx context.Context, id string) (Record, error)
}

// Book is the normalized application view of a record plus its reviews.
type Book struct {
	ID            string           `json:"id" yaml:"id"`
	Title         string           `json:"title" yaml:"title"`
	Author        string           `json:"author" yaml:"author"`
	Genre         string           `json:"genre" yaml:"genre"`
	PublishedYear int              `json:"publishedYear" yaml:"publishedYear"`
	CoverImageURL *string          `json:"coverImageUrl,omitempty" yaml:"coverImageUrl,omitempty"`
	Description   *string          `json:"description,omitempty" yaml:"description,omitempty"`
	Reviews       []reviews.Review `json:"reviews" yaml:"reviews"`
	AverageRating float64          `json:"averageRating" yaml:"averageRating"`

	nativeRating *float64
}

// Normalize maps a record to a Book. It never fails; missing fields get
// the package defaults.
func Normalize(r Record) Book {
	b := Book{
		ID:            r.ID,
		Title:         firstNonBlank(r.Title, DefaultTitle),
		Author:        DefaultAuthor,
		Genre:         DefaultGenre,
		PublishedYear: parseYear(r.PublishedDate),
		nativeRating:  r.AverageRating,
	}

	if authors := nonBlank(r.Authors); len(authors) > 0 {
		b.Author = strings.Join(authors, ", ")
	}
	if cats := nonBlank(r.Categories); len(cats) > 0 {
		b.Genre = cats[0]
	}
	if cover := secureURL(r.CoverURL); cover != "" {
		b.CoverImageURL = &cover
	}

	desc := firstNonBlank(r.Description, DefaultDescription)
	b.Description = &desc

	if r.AverageRating != nil {
		b.AverageRating = *r.AverageRating
	}
	return b
}

// WithReviews returns b with list attached and the average recomputed:
// the mean rating, else the source's rating, else 0.
func (b Book) WithReviews(list []reviews.Review) Book {
	b.Reviews = list
	if avg, ok := reviews.Average(list); ok {
		b.AverageRating = avg
		return b
	}
	if b.nativeRating != nil {
		b.AverageRating = *b.nativeRating
		return b
	}
	b.AverageRating = 0
	return b
}

// parseYear returns the first run of exactly four ASCII digits in date, so
// "2004-05-01" and "October 1, 1988" both yield a year.
func parseYear(date string) int {
	run, year := 0, 0
	for i := 0; i <= len(date); i++ {
		if i < len(date) && '0' <= date[i] && date[i] <= '9' {
			run++
			year = year*10 + int(date[i]-'0')
			continue
		}
		if run == 4 {
			return year
		}
		run, year = 0, 0
	}
	return 0
}

func secureURL(u string) string {
	u = strings.TrimSpace(u)
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "https://" + rest
	}
	return u
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonBlank(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
