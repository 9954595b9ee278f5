package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store on a Pebble LSM directory.
//
// Key schema (owned by the reviews package):
//   - book:<id>:reviews -> JSON array of reviews
//   - review:<id>       -> book id
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (and creates if needed) the Pebble database in dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	if dir == "" {
		dir = "./folio.pebble"
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer func() { _ = closer.Close() }()

	// value is only valid until closer.Close
	return append([]byte(nil), value...), true, nil
}

func (p *PebbleStore) Put(_ context.Context, key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (p *PebbleStore) Delete(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (p *PebbleStore) Scan(ctx context.Context, prefix string, fn ScanFunc) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to scan %q: %w", prefix, err)
	}
	defer func() { _ = iter.Close() }()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := string(iter.Key())
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}
