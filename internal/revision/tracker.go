// Package revision tracks the per-pond revision counter that orders writes
// to the shared remote document.
//
// The local revision only moves forward. Every outbound push bumps it and
// embeds the new value; an inbound document is accepted only when its
// revision is strictly greater. Equal revisions are rejected, which is what
// makes the gate one-way.
package revision

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Persister stores the local revision durably. store.Store implements it.
type Persister interface {
	SaveRevision(ctx context.Context, pondID string, rev int64) error
}

// Tracker holds the local revision and the last remote revision seen.
//
// Thread-safety: all methods are safe for concurrent use. The session loop
// is the only writer in practice, but status readers may call Local and
// Remote from other goroutines.
type Tracker struct {
	pondID string
	local  atomic.Int64
	remote atomic.Int64
	store  Persister
	logger *slog.Logger
}

// New creates a tracker resuming from a previously persisted revision.
// store may be nil, in which case revisions are kept in memory only.
func New(pondID string, start int64, store Persister, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{pondID: pondID, store: store, logger: logger}
	if start > 0 {
		t.local.Store(start)
	}
	return t
}

// Bump increments the local revision, persists it, and returns the new
// value. A persist failure is logged; the in-memory revision still advances
// so the next push cannot reuse the number.
func (t *Tracker) Bump(ctx context.Context) int64 {
	rev := t.local.Add(1)
	t.persist(ctx, rev)
	return rev
}

// Observe records the revision of a remote document, accepted or not.
func (t *Tracker) Observe(remoteRev int64) {
	t.remote.Store(remoteRev)
}

// ShouldAccept reports whether a remote document at remoteRev is newer
// than local state.
func (t *Tracker) ShouldAccept(remoteRev int64) bool {
	return remoteRev > t.local.Load()
}

// Adopt raises the local revision to rev. Lower or equal values are
// ignored; the local revision never decreases.
func (t *Tracker) Adopt(ctx context.Context, rev int64) {
	for {
		cur := t.local.Load()
		if rev <= cur {
			return
		}
		if t.local.CompareAndSwap(cur, rev) {
			t.persist(ctx, rev)
			return
		}
	}
}

// Local returns the current local revision.
func (t *Tracker) Local() int64 {
	return t.local.Load()
}

// Remote returns the last observed remote revision.
func (t *Tracker) Remote() int64 {
	return t.remote.Load()
}

func (t *Tracker) persist(ctx context.Context, rev int64) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveRevision(ctx, t.pondID, rev); err != nil {
		t.logger.Warn("persist revision failed", "pond", t.pondID, "rev", rev, "error", err)
	}
}
