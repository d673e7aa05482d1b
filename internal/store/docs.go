package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/fishpond/internal/remote"
)

// LoadDoc returns the hosted remote document for pondID, or ErrNotFound.
func (s *Store) LoadDoc(ctx context.Context, pondID string) (*remote.Doc, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM docs WHERE pond_id = ?`, pondID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load doc %s: %w", pondID, err)
	}

	var d remote.Doc
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decode doc %s: %w", pondID, err)
	}
	return &d, nil
}

// SaveDoc replaces the hosted document for pondID. The document is stored
// as given; callers assign UpdatedAt.
func (s *Store) SaveDoc(ctx context.Context, pondID string, d remote.Doc) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode doc %s: %w", pondID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO docs (pond_id, doc, doc_rev, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(pond_id) DO UPDATE SET
			doc = excluded.doc,
			doc_rev = excluded.doc_rev,
			updated_at = excluded.updated_at
	`, pondID, string(raw), d.DocRev, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save doc %s: %w", pondID, err)
	}
	return nil
}

// DocInfo summarises a hosted document.
type DocInfo struct {
	PondID    string `json:"pond"`
	DocRev    int64  `json:"docRev"`
	UpdatedAt int64  `json:"updatedAt"`
}

// ListDocs returns every hosted document, most recently updated first.
func (s *Store) ListDocs(ctx context.Context) ([]DocInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pond_id, doc_rev, updated_at FROM docs
		ORDER BY updated_at DESC, pond_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query docs: %w", err)
	}
	defer rows.Close()

	infos := []DocInfo{}
	for rows.Next() {
		var di DocInfo
		if err := rows.Scan(&di.PondID, &di.DocRev, &di.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan doc: %w", err)
		}
		infos = append(infos, di)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate docs: %w", err)
	}
	return infos, nil
}
