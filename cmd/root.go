package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/folio/internal/config"
	"github.com/lepinkainen/folio/internal/covers"
	"github.com/lepinkainen/folio/internal/tui"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

var (
	selectBook    = tui.SelectBook
	newDownloader = func(update bool) coverDownloader {
		return covers.NewDownloader(covers.WithUpdate(update))
	}
	stdout io.Writer = os.Stdout
)

// CLI represents the complete command structure for the folio application
type CLI struct {
	// Global flags
	Verbose bool `short:"v" help:"Enable debug logging"`

	// Storage flags
	StorageDriver string `help:"Review store backend (sqlite, pebble, postgres, memory)"`
	StoragePath   string `help:"Path to the SQLite file or Pebble directory"`

	// Catalog flags
	Source string `help:"Book metadata source (googlebooks, openlibrary)"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`

	Books   BooksCmd   `cmd:"" help:"Search and show books"`
	Reviews ReviewsCmd `cmd:"" help:"List and edit reviews"`
	Login   LoginCmd   `cmd:"" help:"Check credentials and print an API token"`
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API"`
	Cache   CacheCmd   `cmd:"" help:"Manage the upstream response cache"`
}

func kongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("folio"),
		kong.Description("Browse books from public catalogs and keep reviews for them."),
		kong.UsageOnError(),
	}
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)
	if err := config.Init(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli, kongOptions()...)

	if cli.Verbose {
		initLogging(true)
	}
	updateGlobalConfig(&cli)

	if err := run(context.Background(), ctx); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// run builds the application from the loaded configuration and executes the
// selected command with it.
func run(ctx context.Context, kctx *kong.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app := newApp(ctx, cfg, stdout)
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("Failed to close resources", "error", err)
		}
	}()

	return kctx.Run(app)
}

// updateGlobalConfig lets explicitly set flags override config file and
// environment values.
func updateGlobalConfig(cli *CLI) {
	overrides := map[string]string{
		"storage.driver": cli.StorageDriver,
		"storage.path":   cli.StoragePath,
		"catalog.source": cli.Source,
		"cache.dbfile":   cli.CacheDBFile,
		"cache.ttl":      cli.CacheTTL,
	}
	for key, value := range overrides {
		if value != "" {
			viper.Set(key, value)
		}
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Logs go to stderr so json and yaml output stays parseable
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
