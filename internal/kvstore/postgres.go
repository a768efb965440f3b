package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

// PostgresStore shares counters and cached values across API instances.
//
//	CREATE TABLE kv_entries (
//	  key        TEXT PRIMARY KEY,
//	  value      BYTEA,
//	  counter    BIGINT NOT NULL DEFAULT 0,
//	  expires_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	q dbx.Querier
}

func NewPostgresStore(q dbx.Querier) *PostgresStore {
	return &PostgresStore{q: q}
}

func (s *PostgresStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO kv_entries (key, counter, expires_at)
		VALUES ($1, 1, now() + make_interval(secs => $2))
		ON CONFLICT (key) DO UPDATE SET
		  counter    = CASE WHEN kv_entries.expires_at <= now() THEN 1 ELSE kv_entries.counter + 1 END,
		  expires_at = CASE WHEN kv_entries.expires_at <= now() THEN EXCLUDED.expires_at ELSE kv_entries.expires_at END
		RETURNING counter
	`, key, ttl.Seconds()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("kv incr: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.q.QueryRow(ctx, `
		SELECT value FROM kv_entries
		WHERE key = $1 AND expires_at > now() AND value IS NOT NULL
	`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kv get: %w", err)
	}
	return v, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO kv_entries (key, value, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return err
}

func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("kv sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}
