// Package cache is a SQLite-backed TTL cache for upstream catalog responses.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultCacheTTL is the default time-to-live for cached entries (30 days)
	DefaultCacheTTL = 720 * time.Hour
	// NegativeCacheTTL is the TTL for "not found" responses
	NegativeCacheTTL = 24 * time.Hour
)

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func(ctx context.Context) (T, error)

// CacheDB manages the SQLite database connection for caching
type CacheDB struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	ttl         time.Duration
	negativeTTL time.Duration
	now         func() time.Time
}

// Option configures a CacheDB.
type Option func(*CacheDB)

// WithTTL sets the lifetime of positive entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *CacheDB) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNegativeTTL sets the lifetime of "not found" entries.
func WithNegativeTTL(ttl time.Duration) Option {
	return func(c *CacheDB) {
		if ttl > 0 {
			c.negativeTTL = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *CacheDB) {
		if now != nil {
			c.now = now
		}
	}
}

// Open opens the cache database at dbPath and creates all cache tables.
func Open(dbPath string, opts ...Option) (*CacheDB, error) {
	if dbPath == "" {
		dbPath = "./cache.db"
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	c := &CacheDB{
		db:          db,
		path:        dbPath,
		ttl:         DefaultCacheTTL,
		negativeTTL: NegativeCacheTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, schema := range AllCacheSchemas {
		if _, err := db.Exec(schema); err != nil {
			closeErr := db.Close()
			return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), closeErr)
		}
	}

	return c, nil
}

// Path returns the database file location.
func (c *CacheDB) Path() string {
	return c.path
}

// TTL returns the lifetime of positive entries.
func (c *CacheDB) TTL() time.Duration {
	return c.ttl
}

// NegativeTTL returns the lifetime of "not found" entries.
func (c *CacheDB) NegativeTTL() time.Duration {
	return c.negativeTTL
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// validateTableName checks if the table name is in the whitelist
// to prevent SQL injection attacks
func validateTableName(tableName string) error {
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}

// Get returns the cached data for key when present and not expired.
func (c *CacheDB) Get(ctx context.Context, tableName, key string) (string, bool, error) {
	if err := validateTableName(tableName); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`SELECT data, expires_at FROM %s WHERE cache_key = ?`, tableName)

	var data string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, query, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}

	if c.now().UnixMilli() >= expiresAt {
		slog.Debug("Cache expired", "table", tableName, "key", key)
		return "", false, nil
	}

	return data, true, nil
}

// Set stores data under key for ttl.
func (c *CacheDB) Set(ctx context.Context, tableName, key, data string, ttl time.Duration) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, tableName)

	if _, err := c.db.ExecContext(ctx, query, key, data, now.UnixMilli(), now.Add(ttl).UnixMilli()); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// ClearExpired removes expired entries from tableName and returns how many.
func (c *CacheDB) ClearExpired(ctx context.Context, tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, tableName)
	result, err := c.db.ExecContext(ctx, query, c.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired cache: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		slog.Info("Cleared expired cache entries", "table", tableName, "count", rows)
	}
	return rows, nil
}

// InvalidateSource deletes every entry written by the named catalog source
// and returns the number of rows deleted.
func (c *CacheDB) InvalidateSource(ctx context.Context, source string) (int64, error) {
	tables, ok := SourceTables[strings.ToLower(source)]
	if !ok {
		return 0, fmt.Errorf("invalid cache source %q; valid sources are: %s", source, strings.Join(Sources(), ", "))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, table := range tables {
		result, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return total, fmt.Errorf("failed to delete cache entries: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		slog.Debug("Cache table cleared", "table", table, "rows_deleted", rows)
		total += rows
	}
	return total, nil
}

// Sources lists the source names accepted by InvalidateSource.
func Sources() []string {
	out := make([]string, 0, len(SourceTables))
	for name := range SourceTables {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// GetOrFetch retrieves data from cache or fetches it using the provided function.
// ttlSelector picks the lifetime of a fetched value; nil means the default TTL.
// A nil cache fetches directly. Cache failures are logged, never returned.
func GetOrFetch[T any](ctx context.Context, c *CacheDB, tableName, cacheKey string, fetchFunc FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	var zero T

	if c == nil {
		data, err := fetchFunc(ctx)
		return data, false, err
	}

	cached, fromCache, err := c.Get(ctx, tableName, cacheKey)
	if err != nil {
		slog.Warn("Cache lookup failed, fetching directly", "table", tableName, "key", cacheKey, "error", err)
	} else if fromCache {
		var result T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			slog.Debug("Cache hit", "table", tableName, "key", cacheKey)
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "table", tableName, "key", cacheKey, "error", err)
	}

	slog.Debug("Cache miss, fetching data", "table", tableName, "key", cacheKey)
	data, err := fetchFunc(ctx)
	if err != nil {
		return zero, false, err
	}

	ttl := c.ttl
	if ttlSelector != nil {
		ttl = ttlSelector(data)
	}
	if ttl <= 0 {
		return data, false, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "table", tableName, "key", cacheKey, "error", err)
		return data, false, nil
	}
	if err := c.Set(ctx, tableName, cacheKey, string(jsonData), ttl); err != nil {
		slog.Warn("Failed to cache data", "table", tableName, "key", cacheKey, "error", err)
	} else {
		slog.Debug("Data cached successfully", "table", tableName, "key", cacheKey, "ttl", ttl)
	}

	return data, false, nil
}

// SelectNegativeCacheTTL returns a TTL selector that gives "not found"
// results the negative TTL of c and everything else the default TTL.
func SelectNegativeCacheTTL[T any](c *CacheDB, isNotFound func(T) bool) func(T) time.Duration {
	return func(result T) time.Duration {
		if c == nil {
			return 0
		}
		if isNotFound(result) {
			return c.negativeTTL
		}
		return c.ttl
	}
}

// Tables returns the cache table names in a stable order.
func Tables() []string {
	out := make([]string, 0, len(ValidCacheTableNames))
	for name := range ValidCacheTableNames {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
