package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fishpond/internal/relay"
	"github.com/roach88/fishpond/internal/store"
)

// NewRelayCommand creates the relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Host shared pond documents over websockets",
		Long: `Serve the shared pond documents that clients synchronize through.

Endpoints:
  /ws       websocket relay (load, save, subscribe)
  /ponds    JSON list of hosted ponds
  /healthz  liveness probe

Documents are kept in the database given by --db.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parentCtx := cmd.Context()
			if parentCtx == nil {
				parentCtx = context.Background()
			}
			ctx, cancel := signalContext(parentCtx)
			defer cancel()

			st, err := store.Open(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to listen", err)
			}
			if rootOpts.Format == "text" {
				fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on ws://%s/ws\n", ln.Addr())
			}
			return serveRelay(ctx, ln, st)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

// newRelayMux routes the relay endpoints.
func newRelayMux(st *store.Store, rs *relay.Server, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", rs)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ponds", func(w http.ResponseWriter, r *http.Request) {
		docs, err := st.ListDocs(r.Context())
		if err != nil {
			logger.Error("list ponds", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(docs)
	})
	return mux
}

func serveRelay(ctx context.Context, ln net.Listener, st *store.Store) error {
	rs := relay.NewServer(st, slog.Default())
	srv := &http.Server{
		Handler:           newRelayMux(st, rs, slog.Default()),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("relay listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return WrapExitError(ExitFailure, "relay stopped", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("relay shutdown", "error", err)
	}
	rs.Close()
	slog.Info("relay stopped")
	return nil
}
