package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/waypost/waypost/internal/ledger"
	"github.com/waypost/waypost/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Type string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <entity-id>",
		Short: "Print an entity's event history",
		Long: `Print an entity's event history in sequence order.

The history is the authoritative record; everything the state command
shows is derived from it.

Example:
  waypost trace guild-a --type progression.level_up_committed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "only events of this type")

	return cmd
}

func runTrace(opts *TraceOptions, rawEntityID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	// The store indexes by normalized ID; raw IDs must never reach it.
	entityID, err := store.NormalizeEntityID(rawEntityID)
	if err != nil {
		exitErr := WrapExitError(ExitCommandError, "VALIDATION", err)
		_ = env.out.Error(exitErr.Message, err.Error())
		return exitErr
	}

	ctx := cmd.Context()
	var events []ledger.Event
	if opts.Type != "" {
		events, err = env.store.EventsByType(ctx, entityID, ledger.Type(opts.Type))
	} else {
		events, err = env.store.Events(ctx, entityID)
	}
	if err != nil {
		exitErr := WrapExitError(ExitFailure, "read event history", err)
		_ = env.out.Error("PERSISTENCE", err.Error())
		return exitErr
	}

	return env.out.Success(events, func(w io.Writer) {
		if len(events) == 0 {
			fmt.Fprintln(w, "no events")
			return
		}
		for _, ev := range events {
			fmt.Fprintf(w, "%4d  %s  %-38s %s\n",
				ev.Seq, ev.Timestamp.UTC().Format(time.RFC3339), ev.Type, ev.Payload)
		}
	})
}
