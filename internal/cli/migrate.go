package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fishpond/internal/store"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite the local save in the current format",
		Long: `Load the newest local save of a pond (v3, v2 or v1), migrate it forward,
and write it back as the current format. Migration is idempotent. With
--prune the legacy keys are deleted afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := store.Open(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			pondID, err := lookupPondID(ctx, st, rootOpts.PondID)
			if err != nil {
				return err
			}
			from, err := st.MigrateSnapshot(ctx, pondID, prune)
			if errors.Is(err, store.ErrNotFound) {
				return WrapExitError(ExitFailure, "no saved pond "+pondID, err)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "migration failed", err)
			}
			return rootOpts.formatter(cmd).Success(migrateResult{
				Pond:        pondID,
				FromVersion: from,
				Version:     store.CurrentSaveVersion,
				Pruned:      prune,
			})
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "delete legacy save keys after migrating")
	return cmd
}

type migrateResult struct {
	Pond        string `json:"pond"`
	FromVersion int    `json:"fromVersion"`
	Version     int    `json:"version"`
	Pruned      bool   `json:"pruned"`
}

func (r migrateResult) String() string {
	if r.FromVersion == r.Version {
		return fmt.Sprintf("pond %s already at v%d", r.Pond, r.Version)
	}
	return fmt.Sprintf("pond %s migrated v%d -> v%d", r.Pond, r.FromVersion, r.Version)
}
