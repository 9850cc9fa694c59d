package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eugener/holocron/internal/storage"
)

const backendName = "sqlite"

// Put upserts the payload for key in a single statement.
func (s *Store) Put(ctx context.Context, key string, val []byte) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO cache_entries (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		key, val, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storage.WriteError(backendName, "upsert", key, err)
	}
	return nil
}

// Get returns the payload for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := s.read.QueryRowContext(ctx,
		`SELECT payload FROM cache_entries WHERE key=?`, key,
	).Scan(&val)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storage.ReadError(backendName, "select", key, err)
	}
	return val, true, nil
}

// Exists reports whether key has a row.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.read.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM cache_entries WHERE key=?`, key,
	).Scan(&n)
	if err != nil {
		return false, storage.ReadError(backendName, "count", key, err)
	}
	return n > 0, nil
}

// Remove deletes the row for key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.write.ExecContext(ctx, `DELETE FROM cache_entries WHERE key=?`, key); err != nil {
		return storage.WriteError(backendName, "delete", key, err)
	}
	return nil
}

// Clear deletes every row.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.write.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return storage.WriteError(backendName, "clear", "*", err)
	}
	return nil
}

// Keys returns all stored keys in key order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT key FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, storage.ReadError(backendName, "list", "*", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, storage.ReadError(backendName, "scan", "*", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.ReadError(backendName, "list", "*", err)
	}
	return keys, nil
}
