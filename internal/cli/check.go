package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/waypost/waypost/internal/config"
	"github.com/waypost/waypost/internal/cost"
	"github.com/waypost/waypost/internal/harness"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [scenario-file...]",
		Short: "Validate the configuration and run scenario files",
		Long: `Validate the configuration file and run scenario files.

Without arguments, prints the effective configuration, including the goal
requirement a few representative levels and community sizes would produce.

Each scenario file argument is executed against a throwaway store with the
default tuning; assertion failures exit 1.

Example:
  waypost check scenarios/level_up.yaml`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, cmd)
		},
	}
	return cmd
}

// checkData is the JSON payload for check results.
type checkData struct {
	Config    config.Config    `json:"config"`
	Samples   []costSample     `json:"samples"`
	Scenarios []scenarioResult `json:"scenarios,omitempty"`
}

type costSample struct {
	Level         int   `json:"level"`
	CommunitySize int   `json:"community_size"`
	RequiredCents int64 `json:"required_cents"`
}

type scenarioResult struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

func runCheck(opts *RootOptions, scenarioPaths []string, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	calc, err := cost.New(cfg.CostParams())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid cost configuration", err)
	}

	var samples []costSample
	for _, level := range []int{1, len(cfg.Cost.BaseTableCents), cfg.Progression.MaxLevel} {
		for _, size := range []int{cfg.Cost.FreeTier, cfg.Cost.FreeTier * 10} {
			samples = append(samples, costSample{
				Level:         level,
				CommunitySize: size,
				RequiredCents: calc.RequiredCents(level, size),
			})
		}
	}

	scenarios, err := runScenarioFiles(scenarioPaths)
	if err != nil {
		return err
	}
	failed := 0
	for _, s := range scenarios {
		if !s.Passed {
			failed++
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	outErr := out.Success(checkData{Config: cfg, Samples: samples, Scenarios: scenarios}, func(w io.Writer) {
		fmt.Fprintf(w, "backend:   %s\n", cfg.Backend)
		fmt.Fprintf(w, "data dir:  %s\n", cfg.DataDir)
		fmt.Fprintf(w, "mode:      %s\n", cfg.Cost.Mode)
		fmt.Fprintf(w, "max level: %d\n", cfg.Progression.MaxLevel)
		fmt.Fprintln(w, "goal requirements:")
		for _, s := range samples {
			fmt.Fprintf(w, "  level %3d, %5d members: %d cents\n", s.Level, s.CommunitySize, s.RequiredCents)
		}
		for _, s := range scenarios {
			if s.Passed {
				fmt.Fprintf(w, "scenario %s: ok\n", s.Name)
				continue
			}
			fmt.Fprintf(w, "scenario %s: FAILED\n", s.Name)
			for _, f := range s.Failures {
				fmt.Fprintf(w, "  %s\n", f)
			}
		}
	})
	if outErr != nil {
		return outErr
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", failed, len(scenarios)))
	}
	return nil
}

// runScenarioFiles executes each scenario against a throwaway store.
// An unloadable file is a command error; assertion failures are recorded
// per scenario.
func runScenarioFiles(paths []string) ([]scenarioResult, error) {
	var results []scenarioResult
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load scenario", err)
		}

		dir, err := os.MkdirTemp("", "waypost-check-*")
		if err != nil {
			return nil, WrapExitError(ExitFailure, "create scenario workspace", err)
		}
		result, err := harness.Run(dir, scenario)
		os.RemoveAll(dir)
		if err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("scenario %s", scenario.Name), err)
		}

		sr := scenarioResult{Name: scenario.Name, Path: path, Passed: true}
		for _, aerr := range result.CheckAssertions(scenario) {
			sr.Passed = false
			sr.Failures = append(sr.Failures, aerr.Error())
		}
		results = append(results, sr)
	}
	return results, nil
}
