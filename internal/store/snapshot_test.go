package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fishpond/internal/pond"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	st := &pond.State{
		NextID: 4,
		Fish: []*pond.Fish{{ID: 1, X: 5, Y: 6, SizeScale: 1.3, Vision: 160, Shape: pond.ShapeLongtail,
			TextureDataURL: "data:image/png;base64,AA", OwnerName: "ana"}},
		Food: []*pond.Food{
			{ID: 2, X: 1, Y: 1, R: 5, Kind: pond.KindCommon, GrowPct: 0.004, State: pond.FoodResting},
			{ID: 3, X: 1, Y: 1, R: 5, Kind: pond.KindCommon, GrowPct: 0.004, State: pond.FoodEaten},
		},
	}
	require.NoError(t, s.SaveSnapshot(ctx, "p", st))

	got, err := s.LoadSnapshot(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.NextID)
	require.Len(t, got.Fish, 1)
	assert.Equal(t, "data:image/png;base64,AA", got.Fish[0].TextureDataURL, "embedded textures stay local")
	assert.Equal(t, "ana", got.Fish[0].OwnerName)
	require.Len(t, got.Food, 1, "terminal food is not persisted")
	assert.Equal(t, int64(2), got.Food[0].ID)

	ls, err := s.LoadSave(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 3, ls.FromVersion)
	assert.Equal(t, "2024-05-01T12:00:00Z", ls.Save.SavedAt)
}

func TestSnapshot_Absent(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadSnapshot(t.Context(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshot_LegacyKeyOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Put(ctx, SnapshotKey("p", 1), []byte(v1Raw)))
	ls, err := s.LoadSave(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 1, ls.FromVersion)

	require.NoError(t, s.Put(ctx, SnapshotKey("p", 2), []byte(v2Raw)))
	ls, err = s.LoadSave(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 2, ls.FromVersion, "v2 preferred over v1")
	assert.Equal(t, SnapshotKey("p", 2), ls.Key)
}

func TestSnapshot_CorruptTreatedAsAbsent(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Put(ctx, SnapshotKey("p", 3), []byte("{not json")))
	_, err := s.LoadSnapshot(ctx, "p")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, SnapshotKey("p", 1), []byte(v1Raw)))
	got, err := s.LoadSnapshot(ctx, "p")
	require.NoError(t, err, "falls back to an older key")
	assert.Len(t, got.Fish, 2)
}

func TestMigrateSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Put(ctx, SnapshotKey("p", 1), []byte(v1Raw)))
	require.NoError(t, s.Put(ctx, SnapshotKey("p", 2), []byte(v2Raw)))

	from, err := s.MigrateSnapshot(ctx, "p", true)
	require.NoError(t, err)
	assert.Equal(t, 2, from)

	keys, err := s.Keys(ctx, "pond:p:")
	require.NoError(t, err)
	assert.Equal(t, []string{SnapshotKey("p", 3)}, keys)

	from, err = s.MigrateSnapshot(ctx, "p", true)
	require.NoError(t, err)
	assert.Equal(t, 3, from)

	_, err = s.MigrateSnapshot(ctx, "empty", false)
	assert.ErrorIs(t, err, ErrNotFound)
}
