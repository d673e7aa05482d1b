package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PutAsset stores a content-addressed blob. Ids are content hashes, so an
// existing id is left untouched.
func (s *Store) PutAsset(ctx context.Context, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, data, size, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, data, len(data), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put asset %s: %w", id, err)
	}
	return nil
}

// GetAsset returns the blob stored under id, or ErrNotFound.
func (s *Store) GetAsset(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM assets WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	return data, nil
}
