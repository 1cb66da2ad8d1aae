package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild <entity-id>",
		Short: "Rematerialize an entity's snapshot from its event history",
		Long: `Rematerialize an entity's snapshot from its event history.

The stored snapshot is discarded and replaced with a fresh replay of the
log. Use this after restoring a data directory from backup or when verify
reports drift.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runRebuild(opts *RootOptions, entityID string, cmd *cobra.Command) error {
	env, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	snap, err := env.engine.Rebuild(cmd.Context(), entityID)
	if err != nil {
		exitErr := ledgerExit(err)
		_ = env.out.Error(exitErr.Message, err.Error())
		return exitErr
	}

	return env.out.Success(snap, func(w io.Writer) {
		if snap.IsZero() {
			fmt.Fprintln(w, "no events, nothing to rebuild")
			return
		}
		writeSnapshot(w, snap)
	})
}
