package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fishpond/internal/harness"
)

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>...",
		Short: "Run scripted simulation scenarios",
		Long: `Run YAML pond scenarios against the simulation and check their assertions.

A directory argument runs every *.yaml file in it. The command exits
non-zero if any assertion fails.`,
		Example: `  pond scenario scenarios/
  pond scenario eat.yaml wall.yaml --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scenarios []*harness.Scenario
			for _, arg := range args {
				loaded, err := loadScenarios(arg)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load scenarios", err)
				}
				scenarios = append(scenarios, loaded...)
			}

			out := scenarioReport{Results: make([]scenarioResult, 0, len(scenarios))}
			for _, sc := range scenarios {
				res, err := harness.Run(sc)
				if err != nil {
					return WrapExitError(ExitCommandError, "scenario "+sc.Name, err)
				}
				out.Results = append(out.Results, scenarioResult{
					Name:   sc.Name,
					Pass:   res.Pass,
					Ticks:  res.Ticks,
					Events: len(res.Trace),
					Errors: res.Errors,
				})
				if !res.Pass {
					out.Failed++
				}
			}

			f := rootOpts.formatter(cmd)
			if err := f.Success(out); err != nil {
				return err
			}
			if out.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", out.Failed, len(out.Results)))
			}
			return nil
		},
	}
	return cmd
}

func loadScenarios(path string) ([]*harness.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return harness.LoadDir(path)
	}
	sc, err := harness.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return []*harness.Scenario{sc}, nil
}

type scenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Ticks  int      `json:"ticks"`
	Events int      `json:"events"`
	Errors []string `json:"errors,omitempty"`
}

type scenarioReport struct {
	Results []scenarioResult `json:"results"`
	Failed  int              `json:"failed"`
}

func (r scenarioReport) String() string {
	var b strings.Builder
	for _, res := range r.Results {
		status := "PASS"
		if !res.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s %s (%d ticks, %d events)\n", status, res.Name, res.Ticks, res.Events)
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "    %s\n", e)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed", len(r.Results)-r.Failed, r.Failed)
	return b.String()
}
