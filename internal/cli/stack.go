package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fishpond/internal/config"
	"github.com/roach88/fishpond/internal/pond"
	"github.com/roach88/fishpond/internal/relay"
	"github.com/roach88/fishpond/internal/remote"
	"github.com/roach88/fishpond/internal/session"
	"github.com/roach88/fishpond/internal/store"
	"github.com/roach88/fishpond/internal/syncer"
)

// flushTimeout bounds the final save when a command exits.
const flushTimeout = 10 * time.Second

// stack is the store, parameters, pond id, and gateway a session runs on.
type stack struct {
	store  *store.Store
	cfg    config.Config
	pondID string
	remote remote.Gateway
	client *relay.Client
}

func openStack(ctx context.Context, opts *RootOptions) (*stack, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	slog.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	pondID, err := session.ResolvePondID(ctx, st, opts.PondID)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to resolve pond id", err)
	}

	s := &stack{store: st, cfg: cfg, pondID: pondID}
	if opts.Relay == "" {
		slog.Warn("no relay configured; remote sync stays inside this process")
		s.remote = remote.NewMemory()
		return s, nil
	}

	client, err := relay.Dial(ctx, opts.Relay, slog.Default())
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to connect to relay", err)
	}
	s.client = client
	s.remote = client
	return s, nil
}

func (s *stack) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			slog.Debug("closing relay client", "error", err)
		}
	}
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// start opens a session on the stack and loads the pond.
func (s *stack) start(ctx context.Context) (*session.Session, syncer.Source, error) {
	sess, err := session.New(session.Options{
		PondID:  s.pondID,
		Config:  s.cfg,
		Storage: s.store,
		Remote:  s.remote,
		Logger:  slog.Default(),
	})
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "failed to create session", err)
	}
	src, err := sess.Start(ctx)
	if err != nil {
		return nil, "", WrapExitError(ExitFailure, "failed to load pond", err)
	}
	return sess, src, nil
}

// withSession runs one pond action: load, act, flush, print.
func withSession(cmd *cobra.Command, opts *RootOptions, action string,
	fn func(ctx context.Context, sess *session.Session) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStack(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, _, err := st.start(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.Drain()

	result, err := fn(ctx, sess)
	if err != nil {
		return WrapExitError(ExitFailure, action+" failed", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := sess.Flush(flushCtx); err != nil {
		return WrapExitError(ExitFailure, "failed to save pond", err)
	}
	sess.Drain()

	if status := sess.Status(); status.LastPushError != "" {
		return WrapExitError(ExitFailure, "saved locally but remote push failed",
			errors.New(status.LastPushError))
	}
	return opts.formatter(cmd).Success(result)
}

type fishResult struct {
	Pond     string       `json:"pond"`
	Revision int64        `json:"revision"`
	Fish     []*pond.Fish `json:"fish"`
}

func (r fishResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pond %s (rev %d)", r.Pond, r.Revision)
	for _, f := range r.Fish {
		b.WriteString("\n  ")
		b.WriteString(describeFish(f))
	}
	return b.String()
}

type foodResult struct {
	Pond     string       `json:"pond"`
	Revision int64        `json:"revision"`
	Food     []*pond.Food `json:"food"`
}

func (r foodResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pond %s (rev %d)", r.Pond, r.Revision)
	for _, fd := range r.Food {
		fmt.Fprintf(&b, "\n  food #%d %s at (%.0f, %.0f)", fd.ID, fd.Kind, fd.X, fd.Y)
	}
	return b.String()
}

func describeFish(f *pond.Fish) string {
	name := f.PetName
	if name == "" {
		name = "-"
	}
	s := fmt.Sprintf("fish #%d %s %s size %.3f at (%.0f, %.0f)", f.ID, name, f.Shape, f.SizeScale, f.X, f.Y)
	if f.OwnerName != "" {
		s += " owner " + f.OwnerName
	}
	if f.TextureID != "" {
		s += " texture " + f.TextureID
	}
	return s
}
