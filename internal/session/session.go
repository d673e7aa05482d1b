// Package session owns a live pond: its state, the frame loop that steps
// the simulation, the user actions that edit it, and the sync coordinator
// that keeps it in step with local storage and the remote document.
//
// All state mutation happens on the loop goroutine. Other goroutines reach
// the pond through Submit or Call.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roach88/fishpond/internal/assets"
	"github.com/roach88/fishpond/internal/config"
	"github.com/roach88/fishpond/internal/pond"
	"github.com/roach88/fishpond/internal/remote"
	"github.com/roach88/fishpond/internal/revision"
	"github.com/roach88/fishpond/internal/sim"
	"github.com/roach88/fishpond/internal/syncer"
)

var (
	// ErrPondFull is returned when adding a fish would exceed the
	// configured maximum.
	ErrPondFull = errors.New("pond is full")

	// ErrUnknownFish is returned for a fish id not in the pond.
	ErrUnknownFish = errors.New("unknown fish")

	// ErrClosed is returned by Call after Close.
	ErrClosed = errors.New("session closed")

	// ErrNotStarted is returned by actions before Start.
	ErrNotStarted = errors.New("session not started")
)

// Storage is everything a session needs from local persistence.
// store.Store implements it.
type Storage interface {
	syncer.Local
	revision.Persister
	assets.Source
	assets.Sink
	LoadRevision(ctx context.Context, pondID string) (int64, error)
}

// Options configures a Session. PondID, Storage, and Remote are required.
type Options struct {
	PondID  string
	Config  config.Config
	Storage Storage
	Remote  remote.Gateway
	Logger  *slog.Logger

	// Rand drives spawning and feeding. Defaults to a time-seeded PCG.
	Rand *rand.Rand

	// Scheduler, Go, and NewWriteID are passed to the coordinator; tests
	// replace them to make timing deterministic.
	Scheduler  syncer.Scheduler
	Go         func(func())
	NewWriteID func() string
}

// CustomFish describes a user-designed fish.
type CustomFish struct {
	OwnerName string
	PetName   string
	Shape     string
	Color     string
	Texture   []byte
}

// Session is one open pond.
type Session struct {
	opts    Options
	engine  *sim.Engine
	state   *pond.State
	tracker *revision.Tracker
	coord   *syncer.Coordinator
	assets  *assets.Resolver
	queue   *taskQueue
	rng     *rand.Rand
	logger  *slog.Logger
}

// New wires a session. Nothing is loaded until Start.
func New(opts Options) (*Session, error) {
	switch {
	case opts.PondID == "":
		return nil, errors.New("session: PondID is required")
	case opts.Storage == nil:
		return nil, errors.New("session: Storage is required")
	case opts.Remote == nil:
		return nil, errors.New("session: Remote is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>17|1))
	}

	return &Session{
		opts:   opts,
		engine: sim.New(opts.Config),
		state:  pond.NewState(),
		assets: assets.NewResolver(opts.Storage, opts.Storage, assets.DefaultCacheSize),
		queue:  newTaskQueue(),
		rng:    opts.Rand,
		logger: opts.Logger.With("pond", opts.PondID),
	}, nil
}

// PondID returns the id of the open pond.
func (s *Session) PondID() string {
	return s.opts.PondID
}

// Start loads the pond (remote first, then local), subscribes to remote
// updates, and moves legacy embedded textures into the asset store.
func (s *Session) Start(ctx context.Context) (syncer.Source, error) {
	if s.coord != nil {
		return "", errors.New("session: already started")
	}
	rev, err := s.opts.Storage.LoadRevision(ctx, s.opts.PondID)
	if err != nil {
		s.logger.Warn("stored revision unreadable, starting at 0", "error", err)
		rev = 0
	}
	s.tracker = revision.New(s.opts.PondID, rev, s.opts.Storage, s.logger)

	coord, err := syncer.New(syncer.Options{
		PondID:          s.opts.PondID,
		State:           s.state,
		Local:           s.opts.Storage,
		Remote:          s.opts.Remote,
		Tracker:         s.tracker,
		LocalThrottle:   s.opts.Config.Sync.LocalThrottle,
		RemoteThrottle:  s.opts.Config.Sync.RemoteThrottle,
		RecentWrites:    s.opts.Config.Sync.RecentWrites,
		Scheduler:       s.opts.Scheduler,
		Post:            s.post,
		Go:              s.opts.Go,
		NewWriteID:      s.opts.NewWriteID,
		OnRemoteApplied: s.onRemoteApplied,
		Logger:          s.logger,
	})
	if err != nil {
		return "", err
	}

	source, err := coord.Bootstrap(ctx)
	if err != nil {
		coord.Close()
		return "", fmt.Errorf("bootstrap pond %s: %w", s.opts.PondID, err)
	}
	s.coord = coord

	if n, err := s.assets.ImportLegacy(ctx, s.state.Fish); err != nil {
		s.logger.Warn("legacy texture import failed", "error", err)
	} else if n > 0 {
		s.logger.Info("imported legacy textures", "fish", n)
		s.coord.MarkDirty()
	}
	return source, nil
}

// Run drives the frame loop at world.frameHz and executes posted tasks
// until ctx ends or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	if s.coord == nil {
		return ErrNotStarted
	}
	hz := s.opts.Config.World.FrameHz
	if hz <= 0 {
		hz = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	s.logger.Info("pond running", "hz", hz)
	last := time.Now()
	for {
		if fn, ok := s.queue.TryDequeue(); ok {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("pond stopping: context cancelled")
			return ctx.Err()

		case <-s.queue.Wait():
			if s.queue.Closed() && s.queue.Len() == 0 {
				s.logger.Info("pond stopping: session closed")
				return nil
			}

		case now := <-ticker.C:
			s.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Drain runs every queued task on the caller's goroutine. It is the loop
// for callers that do not use Run, such as one-shot commands.
func (s *Session) Drain() int {
	n := 0
	for {
		fn, ok := s.queue.TryDequeue()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Submit queues fn to run on the loop. Returns false after Close.
func (s *Session) Submit(fn func()) bool {
	return s.queue.Post(fn)
}

// Call runs fn on the loop and waits for its result. The loop must be
// running (Run) or be drained by the caller.
func (s *Session) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !s.queue.Post(func() { done <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) post(fn func()) {
	if !s.queue.Post(fn) {
		s.logger.Debug("task dropped after close")
	}
}

// Tick advances the simulation by dt seconds. Eating and expiry schedule a
// coalesced save.
func (s *Session) Tick(dt float64) sim.StepResult {
	res := s.engine.Step(s.state, dt)
	if s.coord != nil && (res.Ate || len(res.Expired) > 0) {
		s.coord.MarkDirty()
	}
	return res
}

func (s *Session) onRemoteApplied(d remote.Doc) {
	s.logger.Debug("remote state applied", "rev", d.DocRev)
}

// Snapshot returns a deep copy of the pond. Loop only.
func (s *Session) Snapshot() *pond.State {
	return s.state.Clone()
}

// Status reports sync health. Safe from any goroutine once started.
func (s *Session) Status() syncer.Status {
	if s.coord == nil {
		return syncer.Status{PondID: s.opts.PondID}
	}
	return s.coord.Status()
}

// Texture resolves a fish texture by content id.
func (s *Session) Texture(ctx context.Context, id string) ([]byte, bool) {
	return s.assets.Resolve(ctx, id)
}

// Flush writes pending local and remote saves and waits for in-flight
// pushes. Loop only.
func (s *Session) Flush(ctx context.Context) error {
	if s.coord == nil {
		return ErrNotStarted
	}
	return s.coord.Flush(ctx)
}

// Close stops sync and the loop. It does not flush.
func (s *Session) Close() {
	if s.coord != nil {
		s.coord.Close()
	}
	s.queue.Close()
}
