package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fishpond/internal/pond"
)

// legacyVersions lists snapshot formats in read order, newest first.
var legacyVersions = []int{3, 2, 1}

// LoadedSave is a migrated snapshot together with where it came from.
type LoadedSave struct {
	Save SaveV3

	// FromVersion is the format found on disk before migration.
	FromVersion int
	Key         string
}

// LoadSave finds the newest readable snapshot for pondID and migrates it to
// version 3. Returns ErrNotFound when no key holds a decodable snapshot.
// Corrupt values are logged and skipped.
func (s *Store) LoadSave(ctx context.Context, pondID string) (LoadedSave, error) {
	for _, v := range legacyVersions {
		key := SnapshotKey(pondID, v)
		raw, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return LoadedSave{}, err
		}

		save, err := DecodeSave(raw)
		if err != nil {
			slog.Warn("skipping unreadable snapshot", "pond", pondID, "key", key, "error", err)
			continue
		}
		return LoadedSave{
			Save:        MigrateAt(save, s.now()),
			FromVersion: save.SaveVersion(),
			Key:         key,
		}, nil
	}
	return LoadedSave{}, ErrNotFound
}

// LoadSnapshot returns the stored pond state, or ErrNotFound.
func (s *Store) LoadSnapshot(ctx context.Context, pondID string) (*pond.State, error) {
	ls, err := s.LoadSave(ctx, pondID)
	if err != nil {
		return nil, err
	}
	return ls.Save.State(), nil
}

// SaveSnapshot writes st as a version 3 snapshot. The state is encoded
// immediately, so the caller may keep mutating it after return.
func (s *Store) SaveSnapshot(ctx context.Context, pondID string, st *pond.State) error {
	data, err := EncodeSave(SaveV3{
		NextID:  st.NextID,
		Fish:    st.Fish,
		Food:    activeFood(st.Food),
		SavedAt: s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", pondID, err)
	}
	return s.Put(ctx, SnapshotKey(pondID, CurrentSaveVersion), data)
}

// MigrateSnapshot rewrites the newest readable snapshot as version 3 and,
// when prune is set, deletes the legacy keys. Returns the format that was
// found.
func (s *Store) MigrateSnapshot(ctx context.Context, pondID string, prune bool) (int, error) {
	ls, err := s.LoadSave(ctx, pondID)
	if err != nil {
		return 0, err
	}

	data, err := EncodeSave(ls.Save)
	if err != nil {
		return 0, fmt.Errorf("migrate snapshot %s: %w", pondID, err)
	}
	if err := s.Put(ctx, SnapshotKey(pondID, CurrentSaveVersion), data); err != nil {
		return 0, err
	}

	if prune {
		for _, v := range legacyVersions {
			if v == CurrentSaveVersion {
				continue
			}
			if err := s.Delete(ctx, SnapshotKey(pondID, v)); err != nil {
				return 0, err
			}
		}
	}
	return ls.FromVersion, nil
}

func activeFood(food []*pond.Food) []*pond.Food {
	out := make([]*pond.Food, 0, len(food))
	for _, fd := range food {
		if fd.Active() {
			out = append(out, fd)
		}
	}
	return out
}
