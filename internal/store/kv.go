package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const pondIDKey = "meta:pond-id"

// SnapshotKey is the kv key for a pond snapshot in the given format version.
func SnapshotKey(pondID string, version int) string {
	return fmt.Sprintf("pond:%s:save-v%d", pondID, version)
}

// RevisionKey is the kv key for a pond's local revision.
func RevisionKey(pondID string) string {
	return "pond:" + pondID + ":rev"
}

// Get returns the raw value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys with the given prefix in byte order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv
		WHERE substr(key, 1, ?) = ?
		ORDER BY key COLLATE BINARY ASC
	`, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// LoadRevision returns the persisted local revision, or 0 when none is
// stored or the stored value is unreadable.
func (s *Store) LoadRevision(ctx context.Context, pondID string) (int64, error) {
	raw, err := s.Get(ctx, RevisionKey(pondID))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	rev, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || rev < 0 {
		return 0, nil
	}
	return rev, nil
}

// SaveRevision persists the local revision.
func (s *Store) SaveRevision(ctx context.Context, pondID string, rev int64) error {
	return s.Put(ctx, RevisionKey(pondID), []byte(strconv.FormatInt(rev, 10)))
}

// LoadPondID returns the most recently used pond id, or ErrNotFound.
func (s *Store) LoadPondID(ctx context.Context) (string, error) {
	raw, err := s.Get(ctx, pondIDKey)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(raw))
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

// SavePondID records the pond id in use.
func (s *Store) SavePondID(ctx context.Context, pondID string) error {
	return s.Put(ctx, pondIDKey, []byte(pondID))
}
