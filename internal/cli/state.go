package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state <entity-id>",
		Short: "Show an entity's current progression state",
		Long: `Show an entity's current progression state.

A stale or missing snapshot is rebuilt from the event history before
display. An entity that has never been seen bootstraps at level 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runState(opts *RootOptions, entityID string, cmd *cobra.Command) error {
	env, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	snap, err := env.engine.GetState(cmd.Context(), entityID)
	if err != nil {
		exitErr := ledgerExit(err)
		_ = env.out.Error(exitErr.Message, err.Error())
		return exitErr
	}

	return env.out.Success(snap, func(w io.Writer) {
		writeSnapshot(w, snap)
	})
}
