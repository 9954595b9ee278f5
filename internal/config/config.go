// Package config loads folio settings from defaults, config.yaml, .env files
// and the environment through viper.
package config

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every automatically bound environment variable.
const EnvPrefix = "FOLIO"

// Config is the typed view of the viper settings.
type Config struct {
	Storage StorageConfig
	Cache   CacheConfig
	Catalog CatalogConfig
	Reviews ReviewsConfig
	Auth    AuthConfig
	Server  ServerConfig
	User    UserConfig
}

// StorageConfig selects the review store backend.
type StorageConfig struct {
	Driver string
	Path   string
	DSN    string
}

// CacheConfig configures the upstream response cache.
type CacheConfig struct {
	DBFile      string
	TTL         time.Duration
	NegativeTTL time.Duration
}

// CatalogConfig configures the book metadata source.
type CatalogConfig struct {
	Source       string
	DefaultQuery string
	APIKey       string
	MaxResults   int
	RPS          float64
	Timeout      time.Duration
	Concurrency  int
}

// ReviewsConfig holds review store policy.
type ReviewsConfig struct {
	UniquePerUser bool
	ListingMin    int
	ListingMax    int
	DetailMin     int
	DetailMax     int
}

// DefaultJWTSecret signs tokens when auth.secret is not configured. It is
// public, so tokens signed with it can be forged.
const DefaultJWTSecret = "folio-dev-secret"

// UsesDefaultSecret reports whether tokens are signed with DefaultJWTSecret.
func (a AuthConfig) UsesDefaultSecret() bool {
	return a.Secret == DefaultJWTSecret
}

// AuthConfig holds the demo credentials and token settings.
type AuthConfig struct {
	Secret       string
	TokenTTL     time.Duration
	Username     string
	Password     string
	DemoUserID   int
	PasswordHash string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	CORSOrigins    []string
	TrustProxy     bool
}

// UserConfig is the identity used by CLI review commands.
type UserConfig struct {
	ID       int
	Username string
}

// SetDefaults registers the default value of every setting.
func SetDefaults() {
	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.path", "./folio.db")
	viper.SetDefault("storage.dsn", "")

	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days
	viper.SetDefault("cache.negative_ttl", "24h")

	viper.SetDefault("catalog.source", "googlebooks")
	viper.SetDefault("catalog.default_query", "subject:fiction")
	viper.SetDefault("catalog.max_results", 20)
	viper.SetDefault("catalog.rps", 5)
	viper.SetDefault("catalog.timeout", "10s")
	viper.SetDefault("catalog.concurrency", 4)

	viper.SetDefault("reviews.unique_per_user", false)
	viper.SetDefault("reviews.listing_min", 2)
	viper.SetDefault("reviews.listing_max", 5)
	viper.SetDefault("reviews.detail_min", 3)
	viper.SetDefault("reviews.detail_max", 7)

	viper.SetDefault("auth.secret", DefaultJWTSecret)
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.username", "user1")
	viper.SetDefault("auth.password", "password123")
	viper.SetDefault("auth.user_id", 2)

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.rate_limit_rps", 10)
	viper.SetDefault("server.rate_limit_burst", 20)
	viper.SetDefault("server.max_body_bytes", 1<<20)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.trust_proxy", false)

	viper.SetDefault("user.id", 2)
	viper.SetDefault("user.username", "user1")
}

// LoadDotEnv loads the given env files. Missing files are skipped and
// variables already present in the process environment win.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("Failed to load env file", "file", f, "error", err)
		}
	}
}

// Init loads .env files, registers defaults and environment bindings and
// reads config.yaml from the working directory when one exists.
func Init() error {
	LoadDotEnv(".env.local", ".env")
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	binds := map[string]string{
		"catalog.api_key": "GOOGLE_BOOKS_API_KEY",
		"auth.secret":     "FOLIO_JWT_SECRET",
		"storage.dsn":     "DB_DSN",
	}
	for key, env := range binds {
		if err := viper.BindEnv(key, "FOLIO_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stdErrors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Debug("Config file not found, using defaults")
	}
	return nil
}

// Load returns the current viper settings as a Config.
func Load() (Config, error) {
	cfg := Config{
		Storage: StorageConfig{
			Driver: viper.GetString("storage.driver"),
			Path:   viper.GetString("storage.path"),
			DSN:    viper.GetString("storage.dsn"),
		},
		Cache: CacheConfig{
			DBFile:      viper.GetString("cache.dbfile"),
			TTL:         viper.GetDuration("cache.ttl"),
			NegativeTTL: viper.GetDuration("cache.negative_ttl"),
		},
		Catalog: CatalogConfig{
			Source:       strings.ToLower(viper.GetString("catalog.source")),
			DefaultQuery: viper.GetString("catalog.default_query"),
			APIKey:       viper.GetString("catalog.api_key"),
			MaxResults:   viper.GetInt("catalog.max_results"),
			RPS:          viper.GetFloat64("catalog.rps"),
			Timeout:      viper.GetDuration("catalog.timeout"),
			Concurrency:  viper.GetInt("catalog.concurrency"),
		},
		Reviews: ReviewsConfig{
			UniquePerUser: viper.GetBool("reviews.unique_per_user"),
			ListingMin:    viper.GetInt("reviews.listing_min"),
			ListingMax:    viper.GetInt("reviews.listing_max"),
			DetailMin:     viper.GetInt("reviews.detail_min"),
			DetailMax:     viper.GetInt("reviews.detail_max"),
		},
		Auth: AuthConfig{
			Secret:       viper.GetString("auth.secret"),
			TokenTTL:     viper.GetDuration("auth.token_ttl"),
			Username:     viper.GetString("auth.username"),
			Password:     viper.GetString("auth.password"),
			DemoUserID:   viper.GetInt("auth.user_id"),
			PasswordHash: viper.GetString("auth.password_hash"),
		},
		Server: ServerConfig{
			Addr:           viper.GetString("server.addr"),
			RateLimitRPS:   viper.GetFloat64("server.rate_limit_rps"),
			RateLimitBurst: viper.GetInt("server.rate_limit_burst"),
			MaxBodyBytes:   viper.GetInt64("server.max_body_bytes"),
			CORSOrigins:    viper.GetStringSlice("server.cors_origins"),
			TrustProxy:     viper.GetBool("server.trust_proxy"),
		},
		User: UserConfig{
			ID:       viper.GetInt("user.id"),
			Username: viper.GetString("user.username"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Catalog.Source {
	case "googlebooks", "openlibrary":
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	if c.Catalog.MaxResults <= 0 {
		return fmt.Errorf("catalog.max_results must be positive, got %d", c.Catalog.MaxResults)
	}
	if c.Reviews.ListingMin > c.Reviews.ListingMax || c.Reviews.DetailMin > c.Reviews.DetailMax {
		return fmt.Errorf("review seed range minimum exceeds maximum")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret must not be empty")
	}
	return nil
}
