package engine

import (
	"context"

	"github.com/waypost/waypost/internal/ledger"
	"github.com/waypost/waypost/internal/store"
)

// replaySnapshot folds the entity's full event history from zero state.
// It never reads the stored snapshot, so its result is the authoritative
// materialization of the log.
//
// A sequence gap means the store skipped an unreadable entry. The gap is
// logged and the remaining events still fold, so one damaged line never
// blocks recovery; a corruption error is reserved for a history that
// cannot be read at all.
func (e *Engine) replaySnapshot(ctx context.Context, entityID string) (ledger.Snapshot, error) {
	events, err := e.store.Events(ctx, entityID)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewCorruptionError(entityID, "event history read failed", err)
	}

	var snap ledger.Snapshot
	prev := uint64(0)
	for _, ev := range events {
		if ev.Seq != prev+1 {
			e.logger.Warn("sequence gap in event history, continuing replay",
				"entity_id", entityID, "expected_seq", prev+1, "seq", ev.Seq)
		}
		prev = ev.Seq
		snap = e.fold.fold(snap, ev)
	}
	return snap, nil
}

// Rebuild discards the entity's snapshot and rematerializes it from the
// event history. The returned snapshot is what a fresh replay produces;
// an entity with no history returns a zero snapshot, nothing is written.
func (e *Engine) Rebuild(ctx context.Context, entityID string) (ledger.Snapshot, error) {
	id, err := store.NormalizeEntityID(entityID)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewValidationError(entityID, err.Error())
	}

	release, err := e.locks.acquire(ctx, id, e.cfg.LockTimeout)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer release()

	rebuilt, err := e.replaySnapshot(ctx, id)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if rebuilt.IsZero() {
		return rebuilt, nil
	}
	if err := e.store.SaveSnapshot(ctx, rebuilt); err != nil {
		return ledger.Snapshot{}, ledger.NewPersistenceError(id, "rebuilt snapshot write failed", err)
	}
	e.logger.Info("snapshot rebuilt from event history",
		"entity_id", id, "head_seq", rebuilt.LastAppliedSeq, "level", rebuilt.Level)
	return rebuilt, nil
}

// VerifyReport compares the stored snapshot against a fresh replay. Diffs
// names the fields that disagree.
type VerifyReport struct {
	Consistent bool             `json:"consistent"`
	Stored     *ledger.Snapshot `json:"stored,omitempty"`
	Rebuilt    ledger.Snapshot  `json:"rebuilt"`
	Diffs      []string         `json:"diffs,omitempty"`
}

// Verify replays the entity's history and reports whether the stored
// snapshot matches, without repairing anything. A missing snapshot over a
// non-empty history is inconsistent; Rebuild repairs it.
func (e *Engine) Verify(ctx context.Context, entityID string) (VerifyReport, error) {
	id, err := store.NormalizeEntityID(entityID)
	if err != nil {
		return VerifyReport{}, ledger.NewValidationError(entityID, err.Error())
	}

	release, err := e.locks.acquire(ctx, id, e.cfg.LockTimeout)
	if err != nil {
		return VerifyReport{}, err
	}
	defer release()

	rebuilt, err := e.replaySnapshot(ctx, id)
	if err != nil {
		return VerifyReport{}, err
	}

	stored, found, err := e.store.LoadSnapshot(ctx, id)
	if err != nil {
		return VerifyReport{}, ledger.NewCorruptionError(id, "snapshot read failed", err)
	}

	report := VerifyReport{Rebuilt: rebuilt}
	if !found {
		report.Consistent = rebuilt.IsZero()
		if !report.Consistent {
			report.Diffs = []string{"snapshot missing"}
		}
		return report, nil
	}

	report.Stored = &stored
	report.Diffs = diffSnapshots(stored, rebuilt)
	report.Consistent = len(report.Diffs) == 0
	return report, nil
}

func diffSnapshots(stored, rebuilt ledger.Snapshot) []string {
	var diffs []string
	if stored.Level != rebuilt.Level {
		diffs = append(diffs, "level")
	}
	if stored.ProgressCents != rebuilt.ProgressCents {
		diffs = append(diffs, "progress_accumulated_cents")
	}
	if stored.RewardCents != rebuilt.RewardCents {
		diffs = append(diffs, "reward_accumulated_cents")
	}
	if stored.CumulativeCents != rebuilt.CumulativeCents {
		diffs = append(diffs, "cumulative_contributed_cents")
	}
	if stored.GoalCents != rebuilt.GoalCents {
		diffs = append(diffs, "current_goal_cents")
	}
	if stored.MemberCount != rebuilt.MemberCount {
		diffs = append(diffs, "member_count")
	}
	if !stored.GoalStartedAt.Equal(rebuilt.GoalStartedAt) {
		diffs = append(diffs, "goal_started_at")
	}
	if stored.LastAppliedSeq != rebuilt.LastAppliedSeq {
		diffs = append(diffs, "last_applied_seq")
	}
	return diffs
}
