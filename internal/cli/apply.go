package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/waypost/waypost/internal/ledger"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	AmountCents int64
	RewardOnly  bool
	Key         string
	Members     int
}

// applyData is the JSON payload for apply results.
type applyData struct {
	Snapshot  ledger.Snapshot `json:"snapshot"`
	LeveledUp bool            `json:"leveled_up"`
	Duplicate bool            `json:"duplicate"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <entity-id>",
		Short: "Apply a contribution to an entity",
		Long: `Apply a contribution to an entity.

Progress-affecting contributions (the default) count toward the current
goal and may commit a level-up. With --reward the contribution grows the
reward accumulator only.

Retrying with the same --key is safe: duplicates resolve to the current
state without a second application. A key is generated when omitted, so
pass --key explicitly whenever the call may be retried.

Example:
  waypost apply guild-a --amount-cents 500 --key donation-8861`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.AmountCents, "amount-cents", 0, "contribution amount in cents (required)")
	cmd.Flags().BoolVar(&opts.RewardOnly, "reward", false, "reward-only contribution, does not advance the goal")
	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key (generated when omitted)")
	cmd.Flags().IntVar(&opts.Members, "members", 0, "fresh community-size sample to record with the contribution")
	_ = cmd.MarkFlagRequired("amount-cents")

	return cmd
}

func runApply(opts *ApplyOptions, entityID string, cmd *cobra.Command) error {
	env, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	key := opts.Key
	if key == "" {
		key = env.keys.Generate()
	}

	res, err := env.engine.ApplyContribution(cmd.Context(), ledger.ContributionRequest{
		EntityID:        entityID,
		AmountCents:     opts.AmountCents,
		AffectsProgress: !opts.RewardOnly,
		IdempotencyKey:  key,
		MemberCountHint: opts.Members,
	})
	if err != nil {
		exitErr := ledgerExit(err)
		_ = env.out.Error(exitErr.Message, err.Error())
		return exitErr
	}

	return env.out.Success(applyData{
		Snapshot:  res.Snapshot,
		LeveledUp: res.LeveledUp,
		Duplicate: res.Duplicate,
	}, func(w io.Writer) {
		switch {
		case res.Duplicate:
			fmt.Fprintln(w, "duplicate key, state unchanged")
		case res.LeveledUp:
			fmt.Fprintf(w, "level up! now level %d\n", res.Snapshot.Level)
		}
		writeSnapshot(w, res.Snapshot)
	})
}
