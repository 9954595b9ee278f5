package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lepinkainen/folio/internal/cache"
	"github.com/lepinkainen/folio/internal/server"
)

var notifyContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// LoginCmd checks credentials against the demo account
type LoginCmd struct {
	Username string `short:"u" help:"Username (defaults to auth.username)"`
	Password string `short:"p" help:"Password (defaults to auth.password)"`
	OutputFlags
}

// ServeCmd runs the HTTP API
type ServeCmd struct {
	Addr string `help:"Listen address (defaults to server.addr)"`
}

// CacheCmd groups the cache commands
type CacheCmd struct {
	Invalidate CacheInvalidateCmd `cmd:"" help:"Delete every cached response of a source"`
	Prune      CachePruneCmd      `cmd:"" help:"Delete expired cache entries"`
}

// CacheInvalidateCmd clears one source
type CacheInvalidateCmd struct {
	Source string `arg:"" help:"Source to clear (googlebooks, openlibrary)"`
}

// CachePruneCmd clears expired rows
type CachePruneCmd struct{}

func (c *LoginCmd) Run(app *App) error {
	svc, err := app.Auth()
	if err != nil {
		return err
	}

	username := c.Username
	if username == "" {
		username = app.cfg.Auth.Username
	}
	password := c.Password
	if password == "" {
		password = app.cfg.Auth.Password
	}

	tok, err := svc.Login(app.Context(), username, password)
	if err != nil {
		return err
	}
	return render(app.out, c.Format, tok, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, tok.Token)
		return err
	})
}

func (c *ServeCmd) Run(app *App) error {
	cat, err := app.Catalog()
	if err != nil {
		return err
	}
	store, err := app.Reviews()
	if err != nil {
		return err
	}
	authn, err := app.Auth()
	if err != nil {
		return err
	}

	addr := c.Addr
	if addr == "" {
		addr = app.cfg.Server.Addr
	}

	srv := server.New(cat, store, authn, server.Options{
		RateLimitRPS:   app.cfg.Server.RateLimitRPS,
		RateLimitBurst: app.cfg.Server.RateLimitBurst,
		MaxBodyBytes:   app.cfg.Server.MaxBodyBytes,
		CORSOrigins:    app.cfg.Server.CORSOrigins,
		DetailRange:    app.detailRange(),
		TrustProxy:     app.cfg.Server.TrustProxy,
	})

	if app.cfg.Auth.UsesDefaultSecret() {
		slog.Warn("auth.secret is the built-in development secret; set FOLIO_JWT_SECRET before exposing the API")
	}

	ctx, stop := notifyContext(app.Context())
	defer stop()

	slog.Info("Starting folio API", "addr", addr, "source", cat.SourceName(),
		"storage", app.cfg.Storage.Driver, "login", authn.User().Username, "trust_proxy", app.cfg.Server.TrustProxy)
	return srv.ListenAndServe(ctx, addr)
}

func (c *CacheInvalidateCmd) Run(app *App) error {
	db, err := app.Cache()
	if err != nil {
		return err
	}
	rows, err := db.InvalidateSource(app.Context(), c.Source)
	if err != nil {
		return err
	}
	slog.Info("Cache invalidated", "source", c.Source, "rows_deleted", rows)
	_, err = fmt.Fprintf(app.out, "Deleted %d cached entries for %s\n", rows, c.Source)
	return err
}

func (c *CachePruneCmd) Run(app *App) error {
	db, err := app.Cache()
	if err != nil {
		return err
	}
	var total int64
	for _, table := range cache.Tables() {
		rows, err := db.ClearExpired(app.Context(), table)
		if err != nil {
			return err
		}
		total += rows
	}
	_, err = fmt.Fprintf(app.out, "Deleted %d expired cache entries\n", total)
	return err
}
