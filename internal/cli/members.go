package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// NewMembersCommand creates the members command.
func NewMembersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members <entity-id> <count>",
		Short: "Record a fresh community-size sample",
		Long: `Record a fresh community-size sample for an entity.

The goal currently in progress keeps the sample it opened with; the new
sample takes effect when the next goal opens.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid count %q", args[1]))
			}
			return runMembers(rootOpts, args[0], count, cmd)
		},
	}
	return cmd
}

func runMembers(opts *RootOptions, entityID string, count int, cmd *cobra.Command) error {
	env, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	snap, err := env.engine.UpdateMemberCount(cmd.Context(), entityID, count)
	if err != nil {
		exitErr := ledgerExit(err)
		_ = env.out.Error(exitErr.Message, err.Error())
		return exitErr
	}

	return env.out.Success(snap, func(w io.Writer) {
		writeSnapshot(w, snap)
	})
}
