package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fishpond/internal/testutil"
)

func TestThrottle_SingleShot(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	fired := 0
	th := NewThrottle(time.Second, clock, func() { fired++ })

	th.Mark()
	th.Mark()
	assert.True(t, th.Pending())
	assert.Equal(t, 1, clock.Pending(), "later marks do not arm another timer")

	clock.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.False(t, th.Pending())

	th.Mark()
	clock.Advance(time.Second)
	assert.Equal(t, 2, fired, "re-arms after flushing")
}

func TestThrottle_Cancel(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	fired := 0
	th := NewThrottle(time.Second, clock, func() { fired++ })

	assert.False(t, th.Cancel())
	th.Mark()
	assert.True(t, th.Cancel())
	clock.Advance(time.Minute)
	assert.Zero(t, fired)
}

// stubbornScheduler ignores stop, like a timer whose callback already
// started when Stop was called.
type stubbornScheduler struct {
	fns []func()
}

func (s *stubbornScheduler) AfterFunc(_ time.Duration, f func()) func() bool {
	s.fns = append(s.fns, f)
	return func() bool { return false }
}

func TestThrottle_LateTimerDoesNotFlushNewerArming(t *testing.T) {
	sched := &stubbornScheduler{}
	fired := 0
	th := NewThrottle(time.Second, sched, func() { fired++ })

	th.Mark()
	th.Cancel()
	th.Mark()

	sched.fns[0]()
	assert.Zero(t, fired, "stale callback ignored")
	assert.True(t, th.Pending())

	sched.fns[1]()
	assert.Equal(t, 1, fired)
}

func TestWriteIDs_BoundedRecency(t *testing.T) {
	w := NewWriteIDs(2)
	w.Add("a")
	w.Add("b")
	w.Add("b")
	assert.Equal(t, 2, w.Len())

	w.Add("c")
	assert.False(t, w.Contains("a"), "oldest evicted")
	assert.True(t, w.Contains("b"))
	assert.True(t, w.Contains("c"))
	assert.Equal(t, 2, w.Len())
}

func TestNewWriteID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewWriteID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
