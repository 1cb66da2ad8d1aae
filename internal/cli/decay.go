package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// DecayOptions holds flags for the decay command.
type DecayOptions struct {
	*RootOptions
	AmountCents int64
}

// NewDecayCommand creates the decay command.
func NewDecayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decay <entity-id>",
		Short: "Shrink an entity's reward accumulator",
		Long: `Shrink an entity's reward accumulator.

Decay is recorded as its own event, floors at zero, and never touches
progress, level, or the cumulative total.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecay(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.AmountCents, "amount-cents", 0, "decay amount in cents (required)")
	_ = cmd.MarkFlagRequired("amount-cents")

	return cmd
}

func runDecay(opts *DecayOptions, entityID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	snap, err := env.engine.ApplyRewardDecay(cmd.Context(), entityID, opts.AmountCents)
	if err != nil {
		exitErr := ledgerExit(err)
		_ = env.out.Error(exitErr.Message, err.Error())
		return exitErr
	}

	return env.out.Success(snap, func(w io.Writer) {
		writeSnapshot(w, snap)
	})
}
