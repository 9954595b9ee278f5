package cache

// SQL schemas for cache tables
// All cache tables share the same shape: cache_key primary key, JSON data and
// unix-millisecond timestamps.

// GoogleBooksSearchCacheSchema caches volume search result pages.
const GoogleBooksSearchCacheSchema = `
CREATE TABLE IF NOT EXISTS googlebooks_search_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_googlebooks_search_expires_at ON googlebooks_search_cache(expires_at);
`

// GoogleBooksVolumeCacheSchema caches single volume lookups.
const GoogleBooksVolumeCacheSchema = `
CREATE TABLE IF NOT EXISTS googlebooks_volume_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_googlebooks_volume_expires_at ON googlebooks_volume_cache(expires_at);
`

// OpenLibraryCacheSchema caches OpenLibrary searches and works.
const OpenLibraryCacheSchema = `
CREATE TABLE IF NOT EXISTS openlibrary_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_openlibrary_expires_at ON openlibrary_cache(expires_at);
`

// Cache table names.
const (
	GoogleBooksSearchTable = "googlebooks_search_cache"
	GoogleBooksVolumeTable = "googlebooks_volume_cache"
	OpenLibraryTable       = "openlibrary_cache"
)

// AllCacheSchemas is created when a cache database is opened.
var AllCacheSchemas = []string{
	GoogleBooksSearchCacheSchema,
	GoogleBooksVolumeCacheSchema,
	OpenLibraryCacheSchema,
}

// ValidCacheTableNames whitelists table names interpolated into SQL.
var ValidCacheTableNames = map[string]bool{
	GoogleBooksSearchTable: true,
	GoogleBooksVolumeTable: true,
	OpenLibraryTable:       true,
}

// SourceTables maps a catalog source name to the tables it writes.
var SourceTables = map[string][]string{
	"googlebooks": {GoogleBooksSearchTable, GoogleBooksVolumeTable},
	"openlibrary": {OpenLibraryTable},
}
