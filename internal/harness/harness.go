package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/waypost/waypost/internal/config"
	"github.com/waypost/waypost/internal/cost"
	"github.com/waypost/waypost/internal/engine"
	"github.com/waypost/waypost/internal/ledger"
	"github.com/waypost/waypost/internal/store"
	"github.com/waypost/waypost/internal/store/file"
	"github.com/waypost/waypost/internal/testutil"
)

// clockBase anchors the deterministic scenario clock.
var clockBase = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// Result captures everything a scenario run produced.
type Result struct {
	// Final is the entity's snapshot after the last step.
	Final ledger.Snapshot

	// Events is the full event history after the last step. A reset step
	// clears it along with the stored history.
	Events []ledger.Event

	// LastLeveledUp reports whether the last contribution step committed
	// a level-up.
	LastLeveledUp bool
}

// Run executes a scenario against an isolated file store in dir. The
// engine uses the default cost tuning, a deterministic clock, and
// generated step keys, so the produced trace is byte-stable.
func Run(dir string, scenario *Scenario) (*Result, error) {
	st, err := file.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}
	defer st.Close()

	calc, err := cost.New(config.Default().CostParams())
	if err != nil {
		return nil, err
	}

	clock := testutil.NewDeterministicClock(clockBase, time.Second)
	eng := engine.New(st, calc, config.Default().EngineConfig(),
		engine.WithClock(clock.Now),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	ctx := context.Background()
	if _, err := eng.Bootstrap(ctx, scenario.EntityID, scenario.Members); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	result := &Result{}
	for i, step := range scenario.Steps {
		if err := runStep(ctx, eng, scenario, i, step, result); err != nil {
			return nil, err
		}
	}

	result.Final, err = eng.GetState(ctx, scenario.EntityID)
	if err != nil {
		return nil, fmt.Errorf("final state: %w", err)
	}
	entityID, err := store.NormalizeEntityID(scenario.EntityID)
	if err != nil {
		return nil, err
	}
	result.Events, err = st.Events(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("final history: %w", err)
	}
	return result, nil
}

func runStep(ctx context.Context, eng *engine.Engine, scenario *Scenario, i int, step Step, result *Result) error {
	switch {
	case step.Contribute != nil:
		c := step.Contribute
		key := c.Key
		if key == "" {
			key = fmt.Sprintf("step-%d", i+1)
		}
		res, err := eng.ApplyContribution(ctx, ledger.ContributionRequest{
			EntityID:        scenario.EntityID,
			AmountCents:     c.AmountCents,
			AffectsProgress: !c.Reward,
			IdempotencyKey:  key,
			MemberCountHint: c.Members,
		})
		if err != nil {
			return fmt.Errorf("steps[%d] contribute: %w", i, err)
		}
		result.LastLeveledUp = res.LeveledUp

	case step.SetMembers != nil:
		if _, err := eng.UpdateMemberCount(ctx, scenario.EntityID, *step.SetMembers); err != nil {
			return fmt.Errorf("steps[%d] set_members: %w", i, err)
		}

	case step.DecayCents != nil:
		if _, err := eng.ApplyRewardDecay(ctx, scenario.EntityID, *step.DecayCents); err != nil {
			return fmt.Errorf("steps[%d] decay: %w", i, err)
		}

	case step.Reset:
		if err := eng.ResetEntity(ctx, scenario.EntityID); err != nil {
			return fmt.Errorf("steps[%d] reset: %w", i, err)
		}
	}
	return nil
}
