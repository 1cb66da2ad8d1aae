package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <entity-id>",
		Short: "Check a snapshot against a fresh replay of the log",
		Long: `Check a snapshot against a fresh replay of the event history.

Nothing is repaired; run rebuild to fix reported drift. Exits 1 when the
stored snapshot disagrees with the replay.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runVerify(opts *RootOptions, entityID string, cmd *cobra.Command) error {
	env, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.engine.Verify(cmd.Context(), entityID)
	if err != nil {
		exitErr := ledgerExit(err)
		_ = env.out.Error(exitErr.Message, err.Error())
		return exitErr
	}

	outErr := env.out.Success(report, func(w io.Writer) {
		if report.Consistent {
			fmt.Fprintln(w, "consistent")
			return
		}
		fmt.Fprintf(w, "DRIFT in %s\n", strings.Join(report.Diffs, ", "))
		fmt.Fprintln(w, "rebuilt state:")
		writeSnapshot(w, report.Rebuilt)
	})
	if outErr != nil {
		return outErr
	}

	if !report.Consistent {
		return NewExitError(ExitFailure, "snapshot disagrees with event history")
	}
	return nil
}
