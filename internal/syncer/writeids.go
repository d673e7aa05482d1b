package syncer

import (
	"sync"

	"github.com/google/uuid"
)

// NewWriteID returns a time-ordered random id for an outbound push.
func NewWriteID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WriteIDs remembers the most recent write ids we produced. Once full, the
// oldest id is forgotten. An echo that arrives after its id has been
// forgotten still faces the revision gate, which rejects it.
type WriteIDs struct {
	mu   sync.Mutex
	ring []string
	next int
	set  map[string]struct{}
}

// NewWriteIDs creates a set holding up to size ids.
func NewWriteIDs(size int) *WriteIDs {
	if size < 1 {
		size = 1
	}
	return &WriteIDs{
		ring: make([]string, size),
		set:  make(map[string]struct{}, size),
	}
}

// Add records id, evicting the oldest entry when full.
func (w *WriteIDs) Add(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.set[id]; ok {
		return
	}
	if old := w.ring[w.next]; old != "" {
		delete(w.set, old)
	}
	w.ring[w.next] = id
	w.set[id] = struct{}{}
	w.next = (w.next + 1) % len(w.ring)
}

// Contains reports whether id is one of ours.
func (w *WriteIDs) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.set[id]
	return ok
}

// Len returns the number of remembered ids.
func (w *WriteIDs) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.set)
}
