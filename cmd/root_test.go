package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/folio/internal/cache"
	"github.com/lepinkainen/folio/internal/catalog"
	"github.com/lepinkainen/folio/internal/config"
	"github.com/lepinkainen/folio/internal/covers"
	"github.com/lepinkainen/folio/internal/errors"
	"github.com/lepinkainen/folio/internal/reviews"
	"github.com/lepinkainen/folio/internal/testutil"
	"github.com/lepinkainen/folio/internal/tui"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type fakeSource struct {
	records []catalog.Record
	volumes int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Search(context.Context, string, int) ([]catalog.Record, error) {
	return f.records, nil
}

func (f *fakeSource) Volume(_ context.Context, id string) (catalog.Record, error) {
	f.volumes++
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return catalog.Record{}, errors.NewNotFoundError("book", id)
}

type fakeDownloader struct {
	url, dir, filename string
}

func (f *fakeDownloader) Download(_ context.Context, imageURL, dir, filename string) (*covers.Result, error) {
	f.url, f.dir, f.filename = imageURL, dir, filename
	return &covers.Result{Path: filepath.Join(dir, filename), Downloaded: true}, nil
}

func setupCmd(t *testing.T) string {
	dir, _ := setupCmdSource(t)
	return dir
}

func setupCmdSource(t *testing.T) (string, *fakeSource) {
	t.Helper()
	testutil.ResetViper(t)
	config.SetDefaults()

	dir := t.TempDir()
	viper.Set("storage.path", filepath.Join(dir, "folio.db"))
	viper.Set("cache.dbfile", filepath.Join(dir, "cache.db"))

	src := &fakeSource{records: []catalog.Record{
		{ID: "b1", Title: "Dune", Authors: []string{"Frank Herbert"}, Categories: []string{"Fiction"}, PublishedDate: "1965-08-01", CoverURL: "http://img.example/dune.jpg"},
		{ID: "b2", Title: "Cosmos", Authors: []string{"Carl Sagan"}, Categories: []string{"Science"}, PublishedDate: "1980"},
	}}
	origSource := newSource
	newSource = func(config.CatalogConfig, *cache.CacheDB) (catalog.Source, error) { return src, nil }
	t.Cleanup(func() { newSource = origSource })

	return dir, src
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var cli CLI
	parser, err := kong.New(&cli, append(kongOptions(), kong.Exit(func(code int) {
		t.Fatalf("unexpected Kong exit %d", code)
	}))...)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)

	updateGlobalConfig(&cli)

	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = orig })

	err = run(context.Background(), kctx)
	return buf.String(), err
}

func TestUpdateGlobalConfig(t *testing.T) {
	testutil.ResetViper(t)
	viper.Set("catalog.source", "googlebooks")

	updateGlobalConfig(&CLI{
		StorageDriver: "pebble",
		StoragePath:   "/tmp/folio-pebble",
		CacheTTL:      "12h",
	})

	assert.Equal(t, "pebble", viper.GetString("storage.driver"))
	assert.Equal(t, "/tmp/folio-pebble", viper.GetString("storage.path"))
	assert.Equal(t, "12h", viper.GetString("cache.ttl"))
	assert.Equal(t, "googlebooks", viper.GetString("catalog.source"), "unset flags keep config values")
}

func TestCommandParsing(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongOptions()...)
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"reviews", "create", "b1", "--rating", "4", "--comment", "Great", "-F", "json"})
	require.NoError(t, err)

	assert.Equal(t, "reviews create <book-id>", kctx.Command())
	assert.Equal(t, "b1", cli.Reviews.Create.BookID)
	assert.Equal(t, 4, cli.Reviews.Create.Rating)
	assert.Equal(t, "Great", cli.Reviews.Create.Comment)
	assert.Equal(t, "json", cli.Reviews.Create.Format)

	_, err = parser.Parse([]string{"books", "search", "--format", "xml"})
	assert.Error(t, err)
}

func TestBooksSearchJSON(t *testing.T) {
	setupCmd(t)

	out, err := runCLI(t, "books", "search", "dune", "--format", "json")
	require.NoError(t, err)

	var books []catalog.Book
	require.NoError(t, json.Unmarshal([]byte(out), &books))
	require.Len(t, books, 2)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, 1965, books[0].PublishedYear)
	require.NotNil(t, books[0].CoverImageURL)
	assert.Equal(t, "https://img.example/dune.jpg", *books[0].CoverImageURL)
	for _, b := range books {
		assert.GreaterOrEqual(t, len(b.Reviews), 2)
		assert.LessOrEqual(t, len(b.Reviews), 5)
		assert.Greater(t, b.AverageRating, 0.0)
	}
}

func TestBooksSearchGenreText(t *testing.T) {
	setupCmd(t)

	out, err := runCLI(t, "books", "search", "--genre", "Science")
	require.NoError(t, err)

	assert.Contains(t, out, "Cosmos - Carl Sagan (1980) [Science]")
	assert.NotContains(t, out, "Dune")

	out, err = runCLI(t, "books", "search", "--genre", "science")
	require.NoError(t, err)
	assert.Equal(t, "No books found.\n", out)
}

func TestBooksSearchSort(t *testing.T) {
	setupCmd(t)

	titles := func(t *testing.T, sort string) []string {
		t.Helper()
		out, err := runCLI(t, "books", "search", "--sort", sort, "-F", "json")
		require.NoError(t, err)
		var books []catalog.Book
		require.NoError(t, json.Unmarshal([]byte(out), &books))
		names := make([]string, len(books))
		for i, b := range books {
			names[i] = b.Title
		}
		return names
	}

	assert.Equal(t, []string{"Cosmos", "Dune"}, titles(t, "title"))
	assert.Equal(t, []string{"Dune", "Cosmos"}, titles(t, "-title"))
	assert.Equal(t, []string{"Cosmos", "Dune"}, titles(t, "author"))
	assert.Equal(t, []string{"Dune", "Cosmos"}, titles(t, "published_year"))
	assert.Equal(t, []string{"Cosmos", "Dune"}, titles(t, "-published_year"))

	_, err := runCLI(t, "books", "search", "-s", "rating")
	assert.True(t, errors.IsValidationError(err))
}

func TestBooksSearchInteractive(t *testing.T) {
	_, src := setupCmdSource(t)

	orig := selectBook
	selectBook = func(query string, books []catalog.Book) (tui.SelectionResult, error) {
		assert.Equal(t, "space", query)
		return tui.SelectionResult{Action: tui.ActionSelected, Selection: &books[1]}, nil
	}
	t.Cleanup(func() { selectBook = orig })

	out, err := runCLI(t, "books", "search", "space", "-i")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Cosmos\n"), out)
	assert.Contains(t, out, "Reviews:")
	assert.Zero(t, src.volumes, "the picked result is not fetched again")
}

func TestBooksShowCover(t *testing.T) {
	dir := setupCmd(t)

	dl := &fakeDownloader{}
	orig := newDownloader
	newDownloader = func(bool) coverDownloader { return dl }
	t.Cleanup(func() { newDownloader = orig })

	out, err := runCLI(t, "books", "show", "b1", "--cover-dir", filepath.Join(dir, "covers"), "--format", "yaml")
	require.NoError(t, err)

	var book map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &book))
	assert.Equal(t, "b1", book["id"])
	assert.Equal(t, "https://img.example/dune.jpg", dl.url)
	assert.Equal(t, "b1 - Dune.jpg", dl.filename)
}

func TestBooksShowMissing(t *testing.T) {
	setupCmd(t)

	_, err := runCLI(t, "books", "show", "nope")

	assert.True(t, errors.IsNotFoundError(err))
}

func TestReviewLifecycle(t *testing.T) {
	setupCmd(t)

	out, err := runCLI(t, "reviews", "create", "b9", "--rating", "5", "--comment", "Loved it", "--format", "json")
	require.NoError(t, err)
	var created reviews.Review
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "user1", created.User.Username)

	reviewID := strconv.FormatInt(created.ID, 10)

	out, err = runCLI(t, "reviews", "update", reviewID, "--rating", "3", "--comment", "Fine")
	require.NoError(t, err)
	assert.Equal(t, "Updated review "+reviewID+"\n", out)

	out, err = runCLI(t, "reviews", "list", "b9", "--format", "yaml")
	require.NoError(t, err)
	var list []reviews.Review
	require.NoError(t, yaml.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Rating)
	assert.Equal(t, "Fine", list[0].Comment)

	out, err = runCLI(t, "reviews", "show", reviewID)
	require.NoError(t, err)
	assert.Equal(t, "  #"+reviewID+" [b9] user1 3/5: Fine\n", out)

	out, err = runCLI(t, "reviews", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "user1 3/5: Fine")

	out, err = runCLI(t, "reviews", "delete", reviewID)
	require.NoError(t, err)
	assert.Equal(t, "Deleted review "+reviewID+"\n", out)

	_, err = runCLI(t, "reviews", "delete", reviewID)
	assert.True(t, errors.IsNotFoundError(err))

	_, err = runCLI(t, "reviews", "show", reviewID)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestReviewsCreateValidation(t *testing.T) {
	setupCmd(t)

	_, err := runCLI(t, "reviews", "create", "b1", "--rating", "9", "--comment", "x")

	assert.True(t, errors.IsValidationError(err))
}

func TestLogin(t *testing.T) {
	setupCmd(t)

	out, err := runCLI(t, "login")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "."), "expected a JWT")

	_, err = runCLI(t, "login", "--password", "wrong")
	assert.True(t, errors.IsAuthError(err))
}

func TestCacheCommands(t *testing.T) {
	setupCmd(t)

	out, err := runCLI(t, "cache", "invalidate", "googlebooks")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 0 cached entries for googlebooks\n", out)

	_, err = runCLI(t, "cache", "invalidate", "goodreads")
	assert.ErrorContains(t, err, "invalid cache source")

	out, err = runCLI(t, "cache", "prune")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 0 expired cache entries\n", out)
}

func TestServeStopsOnCancel(t *testing.T) {
	setupCmd(t)

	orig := notifyContext
	notifyContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		return ctx, cancel
	}
	t.Cleanup(func() { notifyContext = orig })

	_, err := runCLI(t, "serve", "--addr", "127.0.0.1:0")
	assert.NoError(t, err)
}

func TestServeWarnsAboutDefaultSecret(t *testing.T) {
	var logs bytes.Buffer
	origLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(origLogger) })

	orig := notifyContext
	notifyContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		return ctx, cancel
	}
	t.Cleanup(func() { notifyContext = orig })

	setupCmd(t)
	_, err := runCLI(t, "serve", "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "built-in development secret")
	assert.Contains(t, logs.String(), "login=user1")

	logs.Reset()
	setupCmd(t)
	viper.Set("auth.secret", "a-real-secret")
	_, err = runCLI(t, "serve", "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "built-in development secret")
}

func TestNewSourceUnknown(t *testing.T) {
	_, err := newSource(config.CatalogConfig{Source: "goodreads"}, nil)
	assert.Error(t, err)
}
