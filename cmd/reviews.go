package cmd

import (
	"fmt"
	"io"
	"strconv"
)

// ReviewsCmd groups the review commands
type ReviewsCmd struct {
	List   ReviewsListCmd   `cmd:"" help:"List the reviews of a book, generating sample reviews on first access"`
	All    ReviewsAllCmd    `cmd:"" help:"List every stored review"`
	Show   ReviewsShowCmd   `cmd:"" help:"Show one review"`
	Create ReviewsCreateCmd `cmd:"" help:"Review a book as the configured user"`
	Update ReviewsUpdateCmd `cmd:"" help:"Change the rating and comment of your review"`
	Delete ReviewsDeleteCmd `cmd:"" help:"Delete your review"`
}

// ReviewsListCmd lists one book's reviews
type ReviewsListCmd struct {
	BookID string `arg:"" name:"book-id" help:"Book ID"`
	OutputFlags
}

// ReviewsAllCmd lists all reviews
type ReviewsAllCmd struct {
	OutputFlags
}

// ReviewsShowCmd shows a single review
type ReviewsShowCmd struct {
	ReviewID int64 `arg:"" name:"review-id" help:"Review ID"`
	OutputFlags
}

// ReviewsCreateCmd creates a review
type ReviewsCreateCmd struct {
	BookID  string `arg:"" name:"book-id" help:"Book ID"`
	Rating  int    `short:"r" required:"" help:"Rating from 1 to 5"`
	Comment string `short:"c" required:"" help:"Review text"`
	OutputFlags
}

// ReviewsUpdateCmd updates a review
type ReviewsUpdateCmd struct {
	ReviewID int64  `arg:"" name:"review-id" help:"Review ID"`
	Rating   int    `short:"r" required:"" help:"Rating from 1 to 5"`
	Comment  string `short:"c" required:"" help:"Review text"`
	OutputFlags
}

// ReviewsDeleteCmd deletes a review
type ReviewsDeleteCmd struct {
	ReviewID int64 `arg:"" name:"review-id" help:"Review ID"`
}

func (c *ReviewsListCmd) Run(app *App) error {
	store, err := app.Reviews()
	if err != nil {
		return err
	}
	list, err := store.List(app.Context(), c.BookID, app.detailRange())
	if err != nil {
		return err
	}
	return render(app.out, c.Format, list, func(w io.Writer) error {
		return writeReviews(w, list)
	})
}

func (c *ReviewsAllCmd) Run(app *App) error {
	store, err := app.Reviews()
	if err != nil {
		return err
	}
	list, err := store.ListAll(app.Context())
	if err != nil {
		return err
	}
	return render(app.out, c.Format, list, func(w io.Writer) error {
		return writeReviews(w, list)
	})
}

func (c *ReviewsShowCmd) Run(app *App) error {
	store, err := app.Reviews()
	if err != nil {
		return err
	}
	review, err := store.Get(app.Context(), c.ReviewID)
	if err != nil {
		return err
	}
	return render(app.out, c.Format, review, func(w io.Writer) error {
		_, err := io.WriteString(w, reviewLine(review))
		return err
	})
}

func (c *ReviewsCreateCmd) Run(app *App) error {
	store, err := app.Reviews()
	if err != nil {
		return err
	}
	review, err := store.Create(app.Context(), app.User(), c.BookID, c.Rating, c.Comment)
	if err != nil {
		return err
	}
	return render(app.out, c.Format, review, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created review %d\n", review.ID)
		return err
	})
}

func (c *ReviewsUpdateCmd) Run(app *App) error {
	store, err := app.Reviews()
	if err != nil {
		return err
	}
	review, err := store.Update(app.Context(), app.User(), c.ReviewID, c.Rating, c.Comment)
	if err != nil {
		return err
	}
	return render(app.out, c.Format, review, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Updated review %d\n", review.ID)
		return err
	})
}

func (c *ReviewsDeleteCmd) Run(app *App) error {
	store, err := app.Reviews()
	if err != nil {
		return err
	}
	if err := store.Delete(app.Context(), app.User(), c.ReviewID); err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, "Deleted review "+strconv.FormatInt(c.ReviewID, 10))
	return err
}
