package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fishpond/internal/pond"
	"github.com/roach88/fishpond/internal/remote"
)

func TestAssets(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	_, err := s.GetAsset(ctx, "sha256-none")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutAsset(ctx, "sha256-a", []byte("png bytes")))
	require.NoError(t, s.PutAsset(ctx, "sha256-a", []byte("ignored")), "content ids are write-once")

	got, err := s.GetAsset(ctx, "sha256-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), got)
}

func TestDocs(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	_, err := s.LoadDoc(ctx, "p")
	assert.ErrorIs(t, err, ErrNotFound)

	st := &pond.State{NextID: 2, Fish: []*pond.Fish{{ID: 1, SizeScale: 1, Vision: 160}}}
	d := remote.FromState(st, 3, "w")
	d.UpdatedAt = 1000
	require.NoError(t, s.SaveDoc(ctx, "p", d))

	d2 := remote.FromState(st, 1, "")
	d2.UpdatedAt = 2000
	require.NoError(t, s.SaveDoc(ctx, "q", d2))

	got, err := s.LoadDoc(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, d, *got)

	d.DocRev = 4
	d.UpdatedAt = 3000
	require.NoError(t, s.SaveDoc(ctx, "p", d))

	infos, err := s.ListDocs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []DocInfo{
		{PondID: "p", DocRev: 4, UpdatedAt: 3000},
		{PondID: "q", DocRev: 1, UpdatedAt: 2000},
	}, infos)
}
