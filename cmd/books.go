package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lepinkainen/folio/internal/catalog"
	"github.com/lepinkainen/folio/internal/covers"
	"github.com/lepinkainen/folio/internal/tui"
)

type coverDownloader interface {
	Download(ctx context.Context, imageURL, dir, filename string) (*covers.Result, error)
}

// BooksCmd groups the book commands
type BooksCmd struct {
	Search BooksSearchCmd `cmd:"" help:"Search the catalog"`
	Show   BooksShowCmd   `cmd:"" help:"Show one book with its reviews"`
}

// BooksSearchCmd searches the configured catalog source
type BooksSearchCmd struct {
	Query       string `arg:"" optional:"" help:"Search query (defaults to the configured query)"`
	Genre       string `short:"g" help:"Only show books of this exact genre"`
	Sort        string `short:"s" help:"Order results by title, author or published_year; prefix with - to reverse, separate with commas"`
	Interactive bool   `short:"i" help:"Pick a result interactively and show it"`
	OutputFlags
}

// BooksShowCmd shows a single book
type BooksShowCmd struct {
	ID           string `arg:"" help:"Book ID"`
	CoverDir     string `help:"Download the cover image into this directory"`
	UpdateCovers bool   `help:"Re-download the cover even if it already exists"`
	OutputFlags
}

func (c *BooksSearchCmd) Run(app *App) error {
	cat, err := app.Catalog()
	if err != nil {
		return err
	}

	books, err := cat.Search(app.Context(), c.Query)
	if err != nil {
		return err
	}
	books = catalog.FilterByGenre(books, c.Genre)
	books, err = catalog.SortBooks(books, c.Sort)
	if err != nil {
		return err
	}
	slog.Debug("Search finished", "query", c.Query, "genre", c.Genre, "sort", c.Sort, "results", len(books))

	if c.Interactive {
		return c.pick(app, cat, books)
	}

	return render(app.out, c.Format, books, func(w io.Writer) error {
		if len(books) == 0 {
			_, err := fmt.Fprintln(w, "No books found.")
			return err
		}
		for _, b := range books {
			if err := writeBookLine(w, b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *BooksSearchCmd) pick(app *App, cat *catalog.Adapter, books []catalog.Book) error {
	res, err := selectBook(c.Query, books)
	if err != nil {
		return fmt.Errorf("book picker failed: %w", err)
	}
	if res.Action != tui.ActionSelected || res.Selection == nil {
		slog.Info("No book selected")
		return nil
	}

	// The selection already carries the source metadata; only the reviews
	// are reloaded at detail size.
	book, err := cat.Refold(app.Context(), *res.Selection)
	if err != nil {
		return err
	}
	return render(app.out, c.Format, book, func(w io.Writer) error {
		return writeBookDetail(w, book)
	})
}

func (c *BooksShowCmd) Run(app *App) error {
	cat, err := app.Catalog()
	if err != nil {
		return err
	}

	book, err := cat.GetByID(app.Context(), c.ID)
	if err != nil {
		return err
	}

	if c.CoverDir != "" {
		c.downloadCover(app, book)
	}

	return render(app.out, c.Format, book, func(w io.Writer) error {
		return writeBookDetail(w, book)
	})
}

// downloadCover logs failures instead of failing the command.
func (c *BooksShowCmd) downloadCover(app *App, book catalog.Book) {
	if book.CoverImageURL == nil {
		slog.Warn("Book has no cover image", "id", book.ID)
		return
	}
	res, err := newDownloader(c.UpdateCovers).Download(app.Context(), *book.CoverImageURL, c.CoverDir, covers.Filename(book.ID, book.Title))
	if err != nil {
		slog.Warn("Failed to download cover", "id", book.ID, "error", err)
		return
	}
	slog.Info("Cover saved", "path", res.Path, "downloaded", res.Downloaded)
}
