package catalog

import (
	"cmp"
	"slices"
	"strings"

	folioerrors "github.com/lepinkainen/folio/internal/errors"
)

// OrderingFields lists the fields SortBooks accepts. A leading "-" reverses
// the direction.
var OrderingFields = []string{"title", "author", "published_year"}

type orderKey struct {
	field string
	desc  bool
}

// parseOrdering reads a comma-separated list like "-published_year,title".
func parseOrdering(ordering string) ([]orderKey, error) {
	var keys []orderKey
	for _, term := range strings.Split(ordering, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		field, desc := strings.CutPrefix(term, "-")
		if !slices.Contains(OrderingFields, field) {
			return nil, folioerrors.NewValidationError("ordering",
				"unknown ordering field "+field+"; use one of "+strings.Join(OrderingFields, ", "))
		}
		keys = append(keys, orderKey{field: field, desc: desc})
	}
	return keys, nil
}

// SortBooks returns books ordered by ordering. Ties keep source order, and
// an empty ordering returns books unchanged.
func SortBooks(books []Book, ordering string) ([]Book, error) {
	keys, err := parseOrdering(ordering)
	if err != nil || len(keys) == 0 {
		return books, err
	}

	out := slices.Clone(books)
	slices.SortStableFunc(out, func(a, b Book) int {
		for _, k := range keys {
			var c int
			switch k.field {
			case "title":
				c = cmp.Compare(a.Title, b.Title)
			case "author":
				c = cmp.Compare(a.Author, b.Author)
			case "published_year":
				c = cmp.Compare(a.PublishedYear, b.PublishedYear)
			}
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return out, nil
}
