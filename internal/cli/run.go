package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fishpond/internal/syncer"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Duration    time.Duration
	StatusEvery time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pond simulation",
		Long: `Load the pond and run the simulation headless.

The pond is loaded from the relay when it holds a document, otherwise from
the local database. Fish steer, eat and grow at the configured frame rate;
changes are saved locally and pushed to the relay on throttles. Updates from
other clients sharing the pond are applied as they arrive.

Example:
  pond run --relay ws://localhost:8080/ws
  pond run --pond 0190f0e2-... --duration 1m --status-every 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPond(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().DurationVar(&opts.StatusEvery, "status-every", 0, "log pond status at this interval")

	return cmd
}

type runResult struct {
	Pond   string        `json:"pond"`
	Source syncer.Source `json:"source"`
	Fish   int           `json:"fish"`
	Food   int           `json:"food"`
	Sync   syncer.Status `json:"sync"`
}

func (r runResult) String() string {
	return fmt.Sprintf("pond %s stopped: %d fish, %d food, rev %d (%d pushes, %d applied)",
		r.Pond, r.Fish, r.Food, r.Sync.LocalRevision, r.Sync.Pushes, r.Sync.Accepted)
}

func runPond(cmd *cobra.Command, opts *RunOptions) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signalContext(parentCtx)
	defer cancel()
	if opts.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.Duration)
		defer stop()
	}

	st, err := openStack(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, source, err := st.start(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if opts.StatusEvery > 0 {
		go func() {
			ticker := time.NewTicker(opts.StatusEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sess.Submit(func() {
						snap := sess.Snapshot()
						status := sess.Status()
						slog.Info("pond status", "pond", st.pondID, "fish", len(snap.Fish), "food", len(snap.Food),
							"rev", status.LocalRevision, "remote_rev", status.RemoteRevision, "pushes", status.Pushes)
					})
				}
			}
		}()
	}

	if opts.Format == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "Pond %s running (loaded from %s).\n", st.pondID, source)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}

	// The subscription ends with the relay connection, so the loop does too.
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	var relayLost atomic.Bool
	if st.client != nil {
		go func() {
			select {
			case <-st.client.Done():
				relayLost.Store(true)
				stopRun()
			case <-runCtx.Done():
			}
		}()
	}

	runErr := sess.Run(runCtx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "pond loop error", runErr)
	}

	flushCtx, stop := context.WithTimeout(context.Background(), flushTimeout)
	defer stop()
	if err := sess.Flush(flushCtx); err != nil {
		slog.Error("final save incomplete", "pond", st.pondID, "error", err)
	}
	sess.Drain()

	if relayLost.Load() {
		slog.Error("relay connection lost", "pond", st.pondID, "error", st.client.Err())
		return WrapExitError(ExitFailure, "relay connection lost", st.client.Err())
	}

	snap := sess.Snapshot()
	slog.Info("pond stopped gracefully", "pond", st.pondID)
	return opts.formatter(cmd).Success(runResult{
		Pond:   st.pondID,
		Source: source,
		Fish:   len(snap.Fish),
		Food:   len(snap.Food),
		Sync:   sess.Status(),
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
