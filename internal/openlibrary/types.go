package openlibrary

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lepinkainen/folio/internal/catalog"
)

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	Subject          []string `json:"subject"`
	FirstPublishYear int      `json:"first_publish_year"`
	RatingsAverage   *float64 `json:"ratings_average"`
	CoverID          int      `json:"cover_i"`
}

func (d searchDoc) toRecord(coversURL string) catalog.Record {
	rec := catalog.Record{
		ID:            strings.TrimPrefix(d.Key, "/works/"),
		Title:         d.Title,
		Authors:       d.AuthorName,
		Categories:    d.Subject,
		AverageRating: d.RatingsAverage,
		CoverURL:      coverURL(coversURL, d.CoverID),
	}
	if d.FirstPublishYear > 0 {
		rec.PublishedDate = strconv.Itoa(d.FirstPublishYear)
	}
	return rec
}

type work struct {
	Title            string          `json:"title"`
	Description      json.RawMessage `json:"description"`
	Subjects         []string        `json:"subjects"`
	Covers           []int           `json:"covers"`
	FirstPublishDate string          `json:"first_publish_date"`
}

func (w work) toRecord(id, coversURL string) catalog.Record {
	rec := catalog.Record{
		ID:            id,
		Title:         w.Title,
		Categories:    w.Subjects,
		PublishedDate: w.FirstPublishDate,
		Description:   extractDescription(w.Description),
	}
	for _, c := range w.Covers {
		if c > 0 {
			rec.CoverURL = coverURL(coversURL, c)
			break
		}
	}
	return rec
}

// extractDescription handles both description shapes: a plain string or
// {"type": "/type/text", "value": "..."}.
func extractDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		return typed.Value
	}
	return ""
}
