package config

import (
	"os"
	"testing"
	"time"

	"github.com/lepinkainen/folio/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	testutil.ResetViper(t)
	SetDefaults()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "./folio.db", cfg.Storage.Path)
	assert.Equal(t, 720*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "googlebooks", cfg.Catalog.Source)
	assert.Equal(t, "subject:fiction", cfg.Catalog.DefaultQuery)
	assert.Equal(t, 20, cfg.Catalog.MaxResults)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.False(t, cfg.Reviews.UniquePerUser)
	assert.Equal(t, 2, cfg.Reviews.ListingMin)
	assert.Equal(t, 5, cfg.Reviews.ListingMax)
	assert.Equal(t, 3, cfg.Reviews.DetailMin)
	assert.Equal(t, 7, cfg.Reviews.DetailMax)
	assert.Equal(t, "user1", cfg.Auth.Username)
	assert.Equal(t, 2, cfg.Auth.DemoUserID)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Server.TrustProxy)
	assert.True(t, cfg.Auth.UsesDefaultSecret())
	assert.Equal(t, UserConfig{ID: 2, Username: "user1"}, cfg.User)
}

func TestInitReadsConfigFileAndEnv(t *testing.T) {
	testutil.ResetViper(t)
	env := testutil.NewTestEnv(t)
	env.WriteFile("config.yaml", []byte(`
storage:
  driver: pebble
  path: ./reviews.pebble
catalog:
  source: openlibrary
  max_results: 5
reviews:
  unique_per_user: true
server:
  trust_proxy: true
`))
	env.WriteFile(".env", []byte("FOLIO_JWT_SECRET=from-dotenv\n"))
	env.Chdir(".")
	// Registers restoration of the variable godotenv is about to set.
	env.SetEnv("FOLIO_JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("FOLIO_JWT_SECRET"))
	env.SetEnv("GOOGLE_BOOKS_API_KEY", "gb-key")
	env.SetEnv("DB_DSN", "postgres://localhost/folio")
	env.SetEnv("FOLIO_SERVER_ADDR", ":9999")

	require.NoError(t, Init())
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pebble", cfg.Storage.Driver)
	assert.Equal(t, "./reviews.pebble", cfg.Storage.Path)
	assert.Equal(t, "postgres://localhost/folio", cfg.Storage.DSN)
	assert.Equal(t, "openlibrary", cfg.Catalog.Source)
	assert.Equal(t, 5, cfg.Catalog.MaxResults)
	assert.Equal(t, "gb-key", cfg.Catalog.APIKey)
	assert.True(t, cfg.Reviews.UniquePerUser)
	assert.Equal(t, "from-dotenv", cfg.Auth.Secret)
	assert.False(t, cfg.Auth.UsesDefaultSecret())
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestInitWithoutConfigFile(t *testing.T) {
	testutil.ResetViper(t)
	env := testutil.NewTestEnv(t)
	env.Chdir(".")

	require.NoError(t, Init())
	_, err := Load()
	assert.NoError(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "unknown source", key: "catalog.source", val: "amazon"},
		{name: "zero results", key: "catalog.max_results", val: 0},
		{name: "inverted range", key: "reviews.detail_min", val: 9},
		{name: "empty secret", key: "auth.secret", val: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.ResetViper(t)
			SetDefaults()
			viper.Set(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
