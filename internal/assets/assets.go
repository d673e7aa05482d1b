// Package assets resolves fish textures by content hash.
//
// Fish carry only a texture id; the bytes live in a content-addressed blob
// store. Resolution is best effort: a missing texture means the renderer
// falls back to the plain body.
package assets

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/fishpond/internal/pond"
)

// IDPrefix marks texture ids derived from a SHA-256 digest.
const IDPrefix = "sha256-"

// Hash returns the content id for data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return IDPrefix + hex.EncodeToString(sum[:])
}

// ValidID reports whether id has the shape Hash produces.
func ValidID(id string) bool {
	hexPart, ok := strings.CutPrefix(id, IDPrefix)
	if !ok || len(hexPart) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

// Source reads blobs by id. store.Store implements it.
type Source interface {
	GetAsset(ctx context.Context, id string) ([]byte, error)
}

// Sink writes blobs by id. store.Store implements it.
type Sink interface {
	PutAsset(ctx context.Context, id string, data []byte) error
}

// DefaultCacheSize bounds the number of textures held in memory.
const DefaultCacheSize = 128

// Resolver is a cache-aside reader over a Source with write-through Put.
type Resolver struct {
	src  Source
	sink Sink
	max  int

	mu    sync.Mutex
	lru   *list.List
	items map[string]*list.Element
}

type entry struct {
	id   string
	data []byte
}

// NewResolver creates a resolver. sink may be nil for read-only use.
// size <= 0 selects DefaultCacheSize.
func NewResolver(src Source, sink Sink, size int) *Resolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Resolver{
		src:   src,
		sink:  sink,
		max:   size,
		lru:   list.New(),
		items: make(map[string]*list.Element),
	}
}

// Resolve returns the texture bytes for id. The second result is false
// when the texture is unknown or the source failed.
func (r *Resolver) Resolve(ctx context.Context, id string) ([]byte, bool) {
	if id == "" {
		return nil, false
	}
	if data, ok := r.cached(id); ok {
		return data, true
	}
	if r.src == nil {
		return nil, false
	}

	data, err := r.src.GetAsset(ctx, id)
	if err != nil {
		slog.Debug("texture unavailable", "texture", id, "error", err)
		return nil, false
	}
	if Hash(data) != id {
		slog.Warn("texture content does not match id", "texture", id)
		return nil, false
	}
	r.Prime(id, data)
	return data, true
}

// Put stores data and returns its content id.
func (r *Resolver) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty texture")
	}
	id := Hash(data)
	if r.sink != nil {
		if err := r.sink.PutAsset(ctx, id, data); err != nil {
			return "", fmt.Errorf("store texture: %w", err)
		}
	}
	r.Prime(id, data)
	return id, nil
}

// Prime inserts a known texture into the cache.
func (r *Resolver) Prime(id string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.items[id]; ok {
		r.lru.MoveToFront(el)
		return
	}
	r.items[id] = r.lru.PushFront(&entry{id: id, data: data})
	for r.lru.Len() > r.max {
		oldest := r.lru.Back()
		r.lru.Remove(oldest)
		delete(r.items, oldest.Value.(*entry).id)
	}
}

// Len returns the number of cached textures.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

func (r *Resolver) cached(id string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.items[id]
	if !ok {
		return nil, false
	}
	r.lru.MoveToFront(el)
	return el.Value.(*entry).data, true
}

// DecodeDataURL extracts the payload of a base64 data URL
// ("data:image/png;base64,....").
func DecodeDataURL(s string) ([]byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("data URL has no payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("data URL is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return data, nil
}

// ImportLegacy moves embedded textures into the blob store: every fish
// with a data URL and no texture id gets one. Returns the number of fish
// updated. Undecodable data URLs are left alone.
func (r *Resolver) ImportLegacy(ctx context.Context, fish []*pond.Fish) (int, error) {
	n := 0
	for _, f := range fish {
		if f.TextureID != "" || f.TextureDataURL == "" {
			continue
		}
		data, err := DecodeDataURL(f.TextureDataURL)
		if err != nil {
			slog.Debug("skipping legacy texture", "fish", f.ID, "error", err)
			continue
		}
		id, err := r.Put(ctx, data)
		if err != nil {
			return n, err
		}
		f.TextureID = id
		n++
	}
	return n, nil
}
