package syncer

import (
	"sync"
	"time"
)

// Scheduler runs f once after d. The returned function cancels the timer
// and reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// WallScheduler schedules on real time.
type WallScheduler struct{}

func (WallScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Throttle coalesces marks into one call per window.
//
// The first Mark after a flush arms a single-shot timer; later marks before
// it fires change nothing. The deadline is never extended, so a steady
// stream of marks still flushes once per window.
type Throttle struct {
	window time.Duration
	sched  Scheduler
	fire   func()

	mu    sync.Mutex
	armed bool
	gen   uint64
	stop  func() bool
}

// NewThrottle creates a throttle that calls fire when the window closes.
// fire runs on the scheduler's goroutine.
func NewThrottle(window time.Duration, sched Scheduler, fire func()) *Throttle {
	return &Throttle{window: window, sched: sched, fire: fire}
}

// Mark records a pending change.
func (t *Throttle) Mark() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		return
	}
	t.armed = true
	t.gen++
	gen := t.gen
	t.stop = t.sched.AfterFunc(t.window, func() { t.expire(gen) })
}

// Pending reports whether a flush is scheduled.
func (t *Throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Cancel disarms the timer. Returns true if a flush was pending.
func (t *Throttle) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return false
	}
	t.armed = false
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	return true
}

func (t *Throttle) expire(gen uint64) {
	t.mu.Lock()
	// A timer stopped too late to prevent its callback must not flush on
	// behalf of a newer arming.
	if !t.armed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.armed = false
	t.stop = nil
	t.mu.Unlock()
	t.fire()
}
