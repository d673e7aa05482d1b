package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fishpond/internal/pond"
)

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
	gets  int
	err   error
}

func newMemBlobs() *memBlobs { return &memBlobs{blobs: map[string][]byte{}} }

func (m *memBlobs) GetAsset(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.blobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (m *memBlobs) PutAsset(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.blobs[id] = data
	return nil
}

func TestHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "sha256-ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Hash([]byte("abc")))
	assert.True(t, ValidID(Hash([]byte("x"))))
	assert.False(t, ValidID("sha256-xyz"))
	assert.False(t, ValidID("md5-00"))
}

func TestResolver_CacheAside(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()
	data := []byte("texture")
	blobs.blobs[Hash(data)] = data

	r := NewResolver(blobs, nil, 0)
	got, ok := r.Resolve(ctx, Hash(data))
	require.True(t, ok)
	assert.Equal(t, data, got)

	_, ok = r.Resolve(ctx, Hash(data))
	require.True(t, ok)
	assert.Equal(t, 1, blobs.gets, "second resolve served from cache")

	_, ok = r.Resolve(ctx, "sha256-missing")
	assert.False(t, ok)
	_, ok = r.Resolve(ctx, "")
	assert.False(t, ok)
}

func TestResolver_RejectsMismatchedContent(t *testing.T) {
	blobs := newMemBlobs()
	id := Hash([]byte("real"))
	blobs.blobs[id] = []byte("tampered")

	_, ok := NewResolver(blobs, nil, 0).Resolve(context.Background(), id)
	assert.False(t, ok)
}

func TestResolver_PutWritesThrough(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()
	r := NewResolver(blobs, blobs, 0)

	id, err := r.Put(ctx, []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, Hash([]byte("png")), id)
	assert.Equal(t, []byte("png"), blobs.blobs[id])

	_, err = r.Put(ctx, nil)
	assert.Error(t, err)

	blobs.err = errors.New("disk full")
	_, err = r.Put(ctx, []byte("other"))
	assert.Error(t, err)
}

func TestResolver_EvictsLeastRecentlyUsed(t *testing.T) {
	r := NewResolver(nil, nil, 2)
	r.Prime("a", []byte("1"))
	r.Prime("b", []byte("2"))

	_, ok := r.Resolve(context.Background(), "a")
	require.True(t, ok)

	r.Prime("c", []byte("3"))
	assert.Equal(t, 2, r.Len())

	_, ok = r.Resolve(context.Background(), "b")
	assert.False(t, ok, "b was least recently used")
	_, ok = r.Resolve(context.Background(), "a")
	assert.True(t, ok)
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	got, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	for _, bad := range []string{"http://x", "data:image/png;base64", "data:text/plain,hello", "data:image/png;base64,@@@"} {
		_, err := DecodeDataURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestImportLegacy(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobs()
	r := NewResolver(blobs, blobs, 0)

	payload := []byte("legacy")
	fish := []*pond.Fish{
		{ID: 1, TextureDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)},
		{ID: 2, TextureDataURL: "data:image/png;base64,AA==", TextureID: "sha256-keep"},
		{ID: 3, TextureDataURL: "garbage"},
		{ID: 4},
	}

	n, err := r.ImportLegacy(ctx, fish)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Hash(payload), fish[0].TextureID)
	assert.Equal(t, "sha256-keep", fish[1].TextureID)
	assert.Empty(t, fish[2].TextureID)
	assert.Contains(t, blobs.blobs, Hash(payload))
}
