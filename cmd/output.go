package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lepinkainen/folio/internal/catalog"
	"github.com/lepinkainen/folio/internal/reviews"
	"gopkg.in/yaml.v3"
)

// OutputFlags selects how results are printed.
type OutputFlags struct {
	Format string `short:"F" help:"Output format" enum:"text,json,yaml" default:"text"`
}

func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "", "text":
		return text(w)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeBookLine(w io.Writer, b catalog.Book) error {
	_, err := fmt.Fprintf(w, "%-14s %s - %s (%s) [%s] %s\n",
		b.ID, b.Title, b.Author, year(b.PublishedYear), b.Genre, ratingSummary(b))
	return err
}

func writeBookDetail(w io.Writer, b catalog.Book) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", b.Title)
	fmt.Fprintf(&sb, "  ID:        %s\n", b.ID)
	fmt.Fprintf(&sb, "  Author:    %s\n", b.Author)
	fmt.Fprintf(&sb, "  Genre:     %s\n", b.Genre)
	fmt.Fprintf(&sb, "  Published: %s\n", year(b.PublishedYear))
	fmt.Fprintf(&sb, "  Rating:    %s\n", ratingSummary(b))
	if b.CoverImageURL != nil {
		fmt.Fprintf(&sb, "  Cover:     %s\n", *b.CoverImageURL)
	}
	if b.Description != nil {
		fmt.Fprintf(&sb, "\n%s\n", *b.Description)
	}
	if len(b.Reviews) > 0 {
		sb.WriteString("\nReviews:\n")
		for _, r := range b.Reviews {
			sb.WriteString(reviewLine(r))
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeReviews(w io.Writer, list []reviews.Review) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No reviews.")
		return err
	}
	var sb strings.Builder
	for _, r := range list {
		sb.WriteString(reviewLine(r))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func reviewLine(r reviews.Review) string {
	marker := ""
	if r.IsAutoGenerated {
		marker = " (generated)"
	}
	return fmt.Sprintf("  #%d [%s] %s %d/5%s: %s\n",
		r.ID, r.BookID, r.User.Username, r.Rating, marker, r.Comment)
}

func ratingSummary(b catalog.Book) string {
	if b.AverageRating == 0 {
		return "no rating"
	}
	return fmt.Sprintf("%.1f/5 from %d reviews", b.AverageRating, len(b.Reviews))
}

func year(y int) string {
	if y <= 0 {
		return "n/a"
	}
	return fmt.Sprint(y)
}
