package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/fishpond/internal/pond"
	"github.com/roach88/fishpond/internal/remote"
	"github.com/roach88/fishpond/internal/revision"
	"github.com/roach88/fishpond/internal/store"
)

// DefaultPushTimeout bounds a single remote save.
const DefaultPushTimeout = 10 * time.Second

// Local is the snapshot side of the local persistence adapter.
type Local interface {
	LoadSnapshot(ctx context.Context, pondID string) (*pond.State, error)
	SaveSnapshot(ctx context.Context, pondID string, st *pond.State) error
}

// Options configures a Coordinator. State, Local, Remote, Tracker, and Post
// are required.
type Options struct {
	PondID  string
	State   *pond.State
	Local   Local
	Remote  remote.Gateway
	Tracker *revision.Tracker

	LocalThrottle  time.Duration
	RemoteThrottle time.Duration
	RecentWrites   int
	PushTimeout    time.Duration

	// Scheduler arms throttle timers. Defaults to WallScheduler.
	Scheduler Scheduler

	// Post runs fn on the goroutine that owns State.
	Post func(fn func())

	// Go runs fn in the background. Defaults to a plain goroutine.
	Go func(fn func())

	// NewWriteID defaults to NewWriteID.
	NewWriteID func() string

	// OnRemoteApplied is called on the owner loop after an inbound document
	// replaces State.
	OnRemoteApplied func(remote.Doc)

	Logger *slog.Logger
}

// Outcome classifies an inbound document.
type Outcome int

const (
	Applied Outcome = iota + 1
	Echo
	Stale
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Echo:
		return "echo"
	case Stale:
		return "stale"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Source says where Bootstrap took the pond from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
	SourceEmpty  Source = "empty"
)

// Coordinator moves pond state between memory, local storage, and the
// remote document. Except where noted, methods must be called on the owner
// loop.
type Coordinator struct {
	pondID    string
	state     *pond.State
	local     Local
	remote    remote.Gateway
	tracker   *revision.Tracker
	post      func(func())
	spawn     func(func())
	newID     func() string
	onApplied func(remote.Doc)
	logger    *slog.Logger
	timeout   time.Duration

	localT  *Throttle
	remoteT *Throttle
	writes  *WriteIDs

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	unsubscribe func()

	mu      sync.Mutex
	status  Status
	next    *outbound
	sending bool
}

// New creates a Coordinator. It does not touch storage until Bootstrap.
func New(opts Options) (*Coordinator, error) {
	switch {
	case opts.State == nil:
		return nil, errors.New("syncer: State is required")
	case opts.Local == nil:
		return nil, errors.New("syncer: Local is required")
	case opts.Remote == nil:
		return nil, errors.New("syncer: Remote is required")
	case opts.Tracker == nil:
		return nil, errors.New("syncer: Tracker is required")
	case opts.Post == nil:
		return nil, errors.New("syncer: Post is required")
	}

	c := &Coordinator{
		pondID:    opts.PondID,
		state:     opts.State,
		local:     opts.Local,
		remote:    opts.Remote,
		tracker:   opts.Tracker,
		post:      opts.Post,
		spawn:     opts.Go,
		newID:     opts.NewWriteID,
		onApplied: opts.OnRemoteApplied,
		logger:    opts.Logger,
		timeout:   opts.PushTimeout,
		writes:    NewWriteIDs(opts.RecentWrites),
	}
	if c.spawn == nil {
		c.spawn = func(fn func()) { go fn() }
	}
	if c.newID == nil {
		c.newID = NewWriteID
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultPushTimeout
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = WallScheduler{}
	}
	c.localT = NewThrottle(opts.LocalThrottle, sched, func() { c.post(c.flushLocal) })
	c.remoteT = NewThrottle(opts.RemoteThrottle, sched, func() { c.post(c.push) })
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.status.PondID = opts.PondID
	return c, nil
}

// Bootstrap loads the pond and starts the subscription.
//
// A present, valid remote document wins over local storage. Otherwise the
// local snapshot (if any) is loaded and pushed to establish the remote
// document. Remote failures are logged and treated as "no remote document".
func (c *Coordinator) Bootstrap(ctx context.Context) (Source, error) {
	source, err := c.load(ctx)
	if err != nil {
		return "", err
	}

	unsub, err := c.remote.Subscribe(ctx, c.pondID, c.deliver)
	if err != nil {
		c.logger.Warn("remote subscribe failed", "pond", c.pondID, "error", err)
	} else {
		c.unsubscribe = unsub
		c.mu.Lock()
		c.status.Subscribed = true
		c.mu.Unlock()
	}
	if conn, ok := c.remote.(remote.Connection); ok {
		go c.watch(conn.Done())
	}

	c.logger.Info("pond loaded", "pond", c.pondID, "source", source,
		"fish", len(c.state.Fish), "food", len(c.state.Food), "rev", c.tracker.Local())
	return source, nil
}

func (c *Coordinator) load(ctx context.Context) (Source, error) {
	doc, err := c.remote.Load(ctx, c.pondID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		c.logger.Warn("remote load failed, using local snapshot", "pond", c.pondID, "error", err)
		doc = nil
	}
	if doc != nil {
		if verr := doc.Validate(); verr != nil {
			c.logger.Warn("remote document rejected, using local snapshot", "pond", c.pondID, "error", verr)
			doc = nil
		}
	}

	if doc != nil {
		c.state.Replace(doc.ToState())
		c.tracker.Observe(doc.DocRev)
		c.tracker.Adopt(ctx, doc.DocRev)
		c.saveLocal(ctx)
		return SourceRemote, nil
	}

	source := SourceEmpty
	st, err := c.local.LoadSnapshot(ctx, c.pondID)
	switch {
	case err == nil:
		c.state.Replace(st)
		source = SourceLocal
	case errors.Is(err, store.ErrNotFound):
		c.state.Reset()
	default:
		c.logger.Warn("local snapshot unreadable, starting empty", "pond", c.pondID, "error", err)
		c.state.Reset()
	}
	c.push()
	return source, nil
}

// MarkDirty schedules a throttled local save and a throttled remote push.
// Safe to call from any goroutine.
func (c *Coordinator) MarkDirty() {
	c.localT.Mark()
	c.remoteT.Mark()
}

// PushNow pushes the current state immediately, replacing any pending
// throttled push, and schedules a throttled local save.
func (c *Coordinator) PushNow() {
	c.remoteT.Cancel()
	c.push()
	c.localT.Mark()
}

// Flush writes the local snapshot, pushes if a push was pending, and waits
// for every in-flight push to finish or ctx to end.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.localT.Cancel()
	c.saveLocal(ctx)
	if c.remoteT.Cancel() {
		c.push()
	}

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the subscription, pending throttles, and in-flight pushes.
// It does not flush; call Flush first for a clean shutdown.
func (c *Coordinator) Close() {
	c.localT.Cancel()
	c.remoteT.Cancel()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.cancel()
	c.mu.Lock()
	c.status.Subscribed = false
	c.mu.Unlock()
}

// Apply runs the inbound path for one delivered document.
func (c *Coordinator) Apply(d remote.Doc) Outcome {
	if d.WriteID != "" && c.writes.Contains(d.WriteID) {
		c.tracker.Observe(d.DocRev)
		c.count(func(s *Status) { s.Echoes++ })
		return Echo
	}

	c.tracker.Observe(d.DocRev)
	if !c.tracker.ShouldAccept(d.DocRev) {
		c.logger.Debug("stale remote document", "pond", c.pondID, "rev", d.DocRev, "local", c.tracker.Local())
		c.count(func(s *Status) { s.Stale++ })
		return Stale
	}

	if err := d.Validate(); err != nil {
		c.logger.Warn("discarding malformed remote document", "pond", c.pondID, "rev", d.DocRev, "error", err)
		c.count(func(s *Status) { s.Invalid++ })
		return Invalid
	}

	c.state.Replace(d.ToState())
	c.tracker.Adopt(c.ctx, d.DocRev)
	c.dropQueuedThrough(d.DocRev)
	c.localT.Mark()
	c.count(func(s *Status) { s.Accepted++ })
	c.logger.Debug("applied remote document", "pond", c.pondID, "rev", d.DocRev,
		"fish", len(c.state.Fish), "food", len(c.state.Food))

	if c.onApplied != nil {
		c.onApplied(d)
	}
	return Applied
}

// watch marks the pond unsubscribed once the gateway's connection is gone.
func (c *Coordinator) watch(done <-chan struct{}) {
	select {
	case <-done:
		c.mu.Lock()
		c.status.Subscribed = false
		c.status.Disconnected = true
		c.mu.Unlock()
		c.logger.Warn("remote connection lost", "pond", c.pondID)
	case <-c.ctx.Done():
	}
}

// deliver is the subscription callback. It runs on the gateway's goroutine.
func (c *Coordinator) deliver(d remote.Doc) {
	c.post(func() { c.Apply(d) })
}

func (c *Coordinator) flushLocal() {
	c.saveLocal(c.ctx)
}

func (c *Coordinator) saveLocal(ctx context.Context) {
	err := c.local.SaveSnapshot(ctx, c.pondID, c.state)
	c.count(func(s *Status) {
		if err != nil {
			s.LastSaveError = err.Error()
			return
		}
		s.LocalSaves++
		s.LastSaveError = ""
	})
	if err != nil {
		c.logger.Warn("local save failed", "pond", c.pondID, "error", err)
	}
}

// outbound is a document waiting to be sent.
type outbound struct {
	doc remote.Doc
	rev int64
	wid string
}

// push bumps the revision and queues the current state for sending.
// Documents are sent one at a time in revision order; a document still
// queued when a newer one arrives is superseded.
func (c *Coordinator) push() {
	if c.ctx.Err() != nil {
		return
	}
	rev := c.tracker.Bump(c.ctx)
	wid := c.newID()
	c.writes.Add(wid)
	out := &outbound{doc: remote.FromState(c.state, rev, wid), rev: rev, wid: wid}

	c.mu.Lock()
	if c.next != nil {
		c.logger.Debug("remote push superseded", "pond", c.pondID, "rev", c.next.rev)
	}
	c.next = out
	start := !c.sending
	c.sending = true
	c.mu.Unlock()

	if start {
		c.inflight.Add(1)
		c.spawn(c.sendLoop)
	}
}

// dropQueuedThrough discards a queued document built from state that an
// accepted remote revision has replaced. A document already being sent is
// not recalled.
func (c *Coordinator) dropQueuedThrough(rev int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next != nil && c.next.rev <= rev {
		c.logger.Debug("queued push dropped", "pond", c.pondID, "rev", c.next.rev, "remote_rev", rev)
		c.next = nil
	}
}

func (c *Coordinator) sendLoop() {
	defer c.inflight.Done()
	for {
		c.mu.Lock()
		out := c.next
		c.next = nil
		if out == nil {
			c.sending = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.send(out)
	}
}

func (c *Coordinator) send(out *outbound) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	err := c.remote.Save(ctx, c.pondID, out.doc)
	c.count(func(s *Status) {
		if err != nil {
			s.PushFailures++
			s.LastPushError = err.Error()
			return
		}
		s.Pushes++
		s.LastPushAt = time.Now()
		s.LastPushError = ""
	})
	if err != nil {
		c.logger.Warn("remote push failed", "pond", c.pondID, "rev", out.rev, "error", err)
		return
	}
	c.logger.Debug("remote push", "pond", c.pondID, "rev", out.rev, "write", out.wid)
}

func (c *Coordinator) count(f func(*Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(&c.status)
}

// Status is a point-in-time view of sync health.
type Status struct {
	PondID         string    `json:"pond"`
	LocalRevision  int64     `json:"localRevision"`
	RemoteRevision int64     `json:"remoteRevision"`
	Subscribed     bool      `json:"subscribed"`
	Disconnected   bool      `json:"disconnected,omitempty"`
	LocalPending   bool      `json:"localPending"`
	RemotePending  bool      `json:"remotePending"`
	LocalSaves     int       `json:"localSaves"`
	LastSaveError  string    `json:"lastSaveError,omitempty"`
	Pushes         int       `json:"pushes"`
	PushFailures   int       `json:"pushFailures"`
	LastPushAt     time.Time `json:"lastPushAt,omitzero"`
	LastPushError  string    `json:"lastPushError,omitempty"`
	Accepted       int       `json:"accepted"`
	Stale          int       `json:"stale"`
	Echoes         int       `json:"echoes"`
	Invalid        int       `json:"invalid"`
}

// Status returns current counters. Safe to call from any goroutine.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	s := c.status
	c.mu.Unlock()
	s.LocalRevision = c.tracker.Local()
	s.RemoteRevision = c.tracker.Remote()
	s.LocalPending = c.localT.Pending()
	s.RemotePending = c.remoteT.Pending()
	return s
}
