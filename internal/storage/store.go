// Package storage provides the key-value layer the review store persists to.
// Keys are opaque strings; values are JSON documents owned by the caller.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ScanFunc is called for each key/value pair visited by Store.Scan.
// Returning an error stops the scan and is returned from Scan.
type ScanFunc func(key string, value []byte) error

// Store defines the interface for key-value persistence backends
type Store interface {
	// Get returns the value for key and whether it exists
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put creates or replaces the value for key
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// Scan visits every key with the given prefix in ascending key order
	Scan(ctx context.Context, prefix string, fn ScanFunc) error
	// Close releases the underlying resources
	Close() error
}

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPebble   = "pebble"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ErrUnknownDriver is returned by Open for unsupported driver names.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Options selects and configures a storage backend.
type Options struct {
	Driver string
	// Path is the SQLite file or Pebble directory.
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

// Open creates the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		return OpenSQLite(opts.Path)
	case DriverPebble:
		return OpenPebble(opts.Path)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DSN)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, or nil when no such key exists (prefix is empty or all 0xFF).
func prefixUpperBound(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
