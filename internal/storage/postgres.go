package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore implements Store on a Postgres table through a pgx pool.
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// OpenPostgres connects to dsn, pings and ensures the kv table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres storage requires a DSN")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &PostgresStore{db: pool, timeout: 5 * time.Second}, nil
}

func (r *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var value []byte
	err := r.db.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (r *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const upsertSQL = `
		INSERT INTO kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET value = excluded.value, updated_at = now()`
	if _, err := r.db.Exec(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (r *PostgresStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Scan collects rows before calling fn so fn may use the pool.
func (r *PostgresStore) Scan(ctx context.Context, prefix string, fn ScanFunc) error {
	queryCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT key, value FROM kv WHERE key COLLATE "C" >= $1 ORDER BY key COLLATE "C"`
	args := []any{prefix}
	if upper := prefixUpperBound(prefix); upper != nil {
		query = `SELECT key, value FROM kv WHERE key COLLATE "C" >= $1 AND key COLLATE "C" < $2 ORDER BY key COLLATE "C"`
		args = append(args, string(upper))
	}

	rows, err := r.db.Query(queryCtx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to scan %q: %w", prefix, err)
	}

	type pair struct {
		key   string
		value []byte
	}
	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pair, error) {
		var p pair
		err := row.Scan(&p.key, &p.value)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("failed to collect rows: %w", err)
	}

	for _, p := range pairs {
		if err := fn(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresStore) Close() error {
	r.db.Close()
	return nil
}
