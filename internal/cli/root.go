package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/fishpond/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Database string
	PondID   string
	Relay    string
	Config   string
	EnvFile  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pond CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pond",
		Short: "pond - a shared fish pond",
		Long: `A headless fish pond: fish steer toward food, eat, and grow.

Pond state is saved locally in SQLite and synchronized through a websocket
relay so several clients can share one pond. Flags fall back to POND_DB,
POND_ID, POND_RELAY and POND_CONFIG, which may also be set in a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if err := config.LoadDotEnv(opts.EnvFile); err != nil {
				return WrapExitError(ExitCommandError, "failed to load env file", err)
			}
			opts.applyEnv(cmd)
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Database, "db", "pond.db", "path to SQLite database ($"+config.EnvDB+")")
	pf.StringVar(&opts.PondID, "pond", "", "pond id; defaults to the last pond used ($"+config.EnvPondID+")")
	pf.StringVar(&opts.Relay, "relay", "", "relay websocket URL, e.g. ws://localhost:8080/ws ($"+config.EnvRelay+")")
	pf.StringVar(&opts.Config, "config", "", "YAML parameter file ($"+config.EnvConfig+")")
	pf.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRelayCommand(opts))
	cmd.AddCommand(NewAddFishCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))
	cmd.AddCommand(NewCreateFishCommand(opts))
	cmd.AddCommand(NewSetTextureCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported on stderr, or as a JSON envelope on stdout with --format json.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	if f := cmd.PersistentFlags().Lookup("format"); f != nil && f.Value.String() == "json" {
		out := &OutputFormatter{Format: "json", Writer: stdout}
		_ = out.Error(ErrorCode(err), err.Error(), nil)
	} else {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return GetExitCode(err)
}

// applyEnv fills flags the user did not set from the environment.
func (o *RootOptions) applyEnv(cmd *cobra.Command) {
	fill := func(flag string, dst *string, key string) {
		if cmd.Flags().Changed(flag) {
			return
		}
		*dst = config.EnvOr(key, *dst)
	}
	fill("db", &o.Database, config.EnvDB)
	fill("pond", &o.PondID, config.EnvPondID)
	fill("relay", &o.Relay, config.EnvRelay)
	fill("config", &o.Config, config.EnvConfig)
}

// formatter returns an OutputFormatter bound to the command's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
