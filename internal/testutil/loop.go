package testutil

import (
	"fmt"
	"sync"
)

// ManualLoop stands in for a session's owner loop in tests. Post queues a
// task; Drain runs queued tasks on the caller's goroutine.
type ManualLoop struct {
	mu    sync.Mutex
	tasks []func()
}

// Post queues fn. Safe to call from any goroutine.
func (l *ManualLoop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, fn)
}

// Drain runs tasks until the queue is empty, including tasks posted by
// running tasks. Returns the number run.
func (l *ManualLoop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		fn()
		n++
	}
}

// Len returns the number of queued tasks.
func (l *ManualLoop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// SequenceIDs hands out predictable ids ("w-1", "w-2", ...) in place of
// random write ids.
//
// Thread-safety: Next is safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix defaults to "w".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "w"
	}
	return &SequenceIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequenceIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
