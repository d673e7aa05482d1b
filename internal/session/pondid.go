package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/fishpond/internal/store"
)

// PondIDs remembers the last pond a device opened. store.Store implements it.
type PondIDs interface {
	LoadPondID(ctx context.Context) (string, error)
	SavePondID(ctx context.Context, pondID string) error
}

// ResolvePondID picks the pond to open: an explicit id wins, then the
// stored id, then a fresh UUIDv7. The result is persisted as the stored id.
func ResolvePondID(ctx context.Context, ids PondIDs, explicit string) (string, error) {
	id := strings.TrimSpace(explicit)
	if id == "" {
		stored, err := ids.LoadPondID(ctx)
		switch {
		case err == nil:
			id = stored
		case errors.Is(err, store.ErrNotFound):
		default:
			return "", fmt.Errorf("load pond id: %w", err)
		}
	}
	if id == "" {
		u, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate pond id: %w", err)
		}
		id = u.String()
	}
	if err := ids.SavePondID(ctx, id); err != nil {
		return "", fmt.Errorf("save pond id: %w", err)
	}
	return id, nil
}
