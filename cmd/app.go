package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/lepinkainen/folio/internal/auth"
	"github.com/lepinkainen/folio/internal/cache"
	"github.com/lepinkainen/folio/internal/catalog"
	"github.com/lepinkainen/folio/internal/config"
	"github.com/lepinkainen/folio/internal/googlebooks"
	"github.com/lepinkainen/folio/internal/openlibrary"
	"github.com/lepinkainen/folio/internal/ratelimit"
	"github.com/lepinkainen/folio/internal/reviews"
	"github.com/lepinkainen/folio/internal/storage"
)

// newSource builds the metadata source named in cfg. Tests replace it.
var newSource = func(cfg config.CatalogConfig, db *cache.CacheDB) (catalog.Source, error) {
	rps := int(math.Ceil(cfg.RPS))
	if rps <= 0 {
		rps = 1
	}

	switch cfg.Source {
	case "googlebooks":
		return googlebooks.NewClient(cfg.APIKey,
			googlebooks.WithCache(db),
			googlebooks.WithTimeout(cfg.Timeout),
			googlebooks.WithRateLimiter(ratelimit.New("GoogleBooks", rps)),
		), nil
	case "openlibrary":
		return openlibrary.NewClient(
			openlibrary.WithCache(db),
			openlibrary.WithTimeout(cfg.Timeout),
			openlibrary.WithRateLimiter(ratelimit.New("OpenLibrary", rps)),
		), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}

// App lazily opens the resources a command needs and closes them afterwards.
type App struct {
	ctx context.Context
	cfg config.Config
	out io.Writer

	kv      storage.Store
	store   *reviews.Store
	cacheDB *cache.CacheDB
	catalog *catalog.Adapter
	auth    *auth.Service
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) *App {
	return &App{ctx: ctx, cfg: cfg, out: out}
}

// Context returns the context commands run under.
func (a *App) Context() context.Context {
	return a.ctx
}

// User is the identity review commands act as.
func (a *App) User() reviews.User {
	return reviews.User{ID: a.cfg.User.ID, Username: a.cfg.User.Username}
}

// Reviews opens the configured review store.
func (a *App) Reviews() (*reviews.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	kv, err := storage.Open(a.ctx, storage.Options{
		Driver: a.cfg.Storage.Driver,
		Path:   a.cfg.Storage.Path,
		DSN:    a.cfg.Storage.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open review store: %w", err)
	}
	a.kv = kv
	a.store = reviews.NewStore(kv, reviews.WithUniquePerUser(a.cfg.Reviews.UniquePerUser))
	return a.store, nil
}

// Cache opens the upstream response cache.
func (a *App) Cache() (*cache.CacheDB, error) {
	if a.cacheDB != nil {
		return a.cacheDB, nil
	}
	db, err := cache.Open(a.cfg.Cache.DBFile,
		cache.WithTTL(a.cfg.Cache.TTL),
		cache.WithNegativeTTL(a.cfg.Cache.NegativeTTL),
	)
	if err != nil {
		return nil, err
	}
	a.cacheDB = db
	return db, nil
}

// Catalog builds the catalog adapter over the configured source.
func (a *App) Catalog() (*catalog.Adapter, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}

	store, err := a.Reviews()
	if err != nil {
		return nil, err
	}
	db, err := a.Cache()
	if err != nil {
		return nil, err
	}
	source, err := newSource(a.cfg.Catalog, db)
	if err != nil {
		return nil, err
	}

	a.catalog = catalog.NewAdapter(source, store,
		catalog.WithDefaultQuery(a.cfg.Catalog.DefaultQuery),
		catalog.WithLimit(a.cfg.Catalog.MaxResults),
		catalog.WithConcurrency(a.cfg.Catalog.Concurrency),
		catalog.WithSeedRanges(a.listingRange(), a.detailRange()),
	)
	return a.catalog, nil
}

// Auth builds the token service for the demo account.
func (a *App) Auth() (*auth.Service, error) {
	if a.auth != nil {
		return a.auth, nil
	}
	svc, err := auth.NewService(auth.Options{
		Secret:       a.cfg.Auth.Secret,
		TTL:          a.cfg.Auth.TokenTTL,
		Username:     a.cfg.Auth.Username,
		Password:     a.cfg.Auth.Password,
		PasswordHash: a.cfg.Auth.PasswordHash,
		UserID:       a.cfg.Auth.DemoUserID,
	})
	if err != nil {
		return nil, err
	}
	a.auth = svc
	return svc, nil
}

func (a *App) listingRange() reviews.SizeRange {
	return reviews.SizeRange{Min: a.cfg.Reviews.ListingMin, Max: a.cfg.Reviews.ListingMax}
}

func (a *App) detailRange() reviews.SizeRange {
	return reviews.SizeRange{Min: a.cfg.Reviews.DetailMin, Max: a.cfg.Reviews.DetailMax}
}

// Close releases everything the app opened.
func (a *App) Close() error {
	var errs []error
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
	}
	if a.cacheDB != nil {
		errs = append(errs, a.cacheDB.Close())
	}
	return errors.Join(errs...)
}
