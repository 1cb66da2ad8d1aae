package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset <entity-id>",
		Short: "Discard an entity's event history and snapshot",
		Long: `Discard an entity's event history and snapshot.

This is the only operation that destroys history. The entity starts over
from level 1, with its idempotency keys forgotten. Requires --yes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the destructive reset")

	return cmd
}

func runReset(opts *ResetOptions, entityID string, cmd *cobra.Command) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "reset discards all history; pass --yes to confirm")
	}

	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.engine.ResetEntity(cmd.Context(), entityID); err != nil {
		exitErr := ledgerExit(err)
		_ = env.out.Error(exitErr.Message, err.Error())
		return exitErr
	}

	return env.out.Success(map[string]any{"entity_id": entityID, "reset": true}, func(w io.Writer) {
		fmt.Fprintf(w, "reset %s\n", entityID)
	})
}
