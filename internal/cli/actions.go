package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fishpond/internal/pond"
	"github.com/roach88/fishpond/internal/session"
)

// NewAddFishCommand creates the add-fish command.
func NewAddFishCommand(rootOpts *RootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "add-fish",
		Short: "Add random fish to the pond",
		Example: `  pond add-fish
  pond add-fish --count 5 --pond 0190f0e2-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return NewExitError(ExitCommandError, "--count must be at least 1")
			}
			return withSession(cmd, rootOpts, "add fish", func(ctx context.Context, sess *session.Session) (any, error) {
				res := fishResult{Pond: sess.PondID()}
				for range count {
					f, err := sess.AddFish()
					if err != nil {
						return nil, err
					}
					res.Fish = append(res.Fish, f)
				}
				res.Revision = sess.Status().LocalRevision
				return res, nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of fish to add")
	return cmd
}

// NewFeedCommand creates the feed command.
func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	var x, y float64
	var count int

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Drop food pellets into the pond",
		Long: `Drop food pellets. The tier of each pellet is drawn from the configured
tier table. Without --x/--y pellets land at random points.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return NewExitError(ExitCommandError, "--count must be at least 1")
			}
			placed := cmd.Flags().Changed("x") || cmd.Flags().Changed("y")
			return withSession(cmd, rootOpts, "feed", func(ctx context.Context, sess *session.Session) (any, error) {
				res := foodResult{Pond: sess.PondID()}
				for range count {
					var fd *pond.Food
					var err error
					if placed {
						fd, err = sess.Feed(x, y)
					} else {
						fd, err = sess.FeedRandom()
					}
					if err != nil {
						return nil, err
					}
					res.Food = append(res.Food, fd)
				}
				res.Revision = sess.Status().LocalRevision
				return res, nil
			})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "drop point x")
	cmd.Flags().Float64Var(&y, "y", 0, "drop point y")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of pellets")
	return cmd
}

// NewCreateFishCommand creates the create-fish command.
func NewCreateFishCommand(rootOpts *RootOptions) *cobra.Command {
	var custom session.CustomFish
	var texturePath string

	cmd := &cobra.Command{
		Use:   "create-fish",
		Short: "Add a named, custom fish",
		Example: `  pond create-fish --name Bubbles --owner Ana --shape longtail
  pond create-fish --name Rex --texture rex.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if texturePath != "" {
				data, err := os.ReadFile(texturePath)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read texture", err)
				}
				custom.Texture = data
			}
			return withSession(cmd, rootOpts, "create fish", func(ctx context.Context, sess *session.Session) (any, error) {
				f, err := sess.CreateFish(ctx, custom)
				if err != nil {
					return nil, err
				}
				return fishResult{Pond: sess.PondID(), Revision: sess.Status().LocalRevision, Fish: []*pond.Fish{f}}, nil
			})
		},
	}
	cmd.Flags().StringVar(&custom.PetName, "name", "", "pet name")
	cmd.Flags().StringVar(&custom.OwnerName, "owner", "", "owner name")
	cmd.Flags().StringVar(&custom.Shape, "shape", string(pond.DefaultShape), "body shape (angelfish|swordfish|longtail)")
	cmd.Flags().StringVar(&custom.Color, "color", "", "body colour; random when empty")
	cmd.Flags().StringVar(&texturePath, "texture", "", "image file used as the fish texture")
	return cmd
}

// NewSetTextureCommand creates the set-texture command.
func NewSetTextureCommand(rootOpts *RootOptions) *cobra.Command {
	var fishID int64
	var texturePath string

	cmd := &cobra.Command{
		Use:   "set-texture",
		Short: "Replace a fish's texture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(texturePath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read texture", err)
			}
			return withSession(cmd, rootOpts, "set texture", func(ctx context.Context, sess *session.Session) (any, error) {
				id, err := sess.SetTexture(ctx, fishID, data)
				if err != nil {
					return nil, err
				}
				return textureResult{Pond: sess.PondID(), Fish: fishID, TextureID: id}, nil
			})
		},
	}
	cmd.Flags().Int64Var(&fishID, "fish", 0, "fish id (required)")
	cmd.Flags().StringVar(&texturePath, "file", "", "image file (required)")
	_ = cmd.MarkFlagRequired("fish")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type textureResult struct {
	Pond      string `json:"pond"`
	Fish      int64  `json:"fish"`
	TextureID string `json:"textureId"`
}

func (r textureResult) String() string {
	return fmt.Sprintf("fish #%d in pond %s now uses texture %s", r.Fish, r.Pond, r.TextureID)
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every fish and pellet from the pond",
		Long: `Remove every fish and pellet and restart the id counter. The empty pond
is pushed to the relay, so every client sharing the pond is cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to clear without --yes")
			}
			return withSession(cmd, rootOpts, "clear", func(ctx context.Context, sess *session.Session) (any, error) {
				if err := sess.Clear(); err != nil {
					return nil, err
				}
				return fishResult{Pond: sess.PondID(), Revision: sess.Status().LocalRevision, Fish: []*pond.Fish{}}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing the shared pond")
	return cmd
}
