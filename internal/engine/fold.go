package engine

import (
	"log/slog"

	"github.com/waypost/waypost/internal/cost"
	"github.com/waypost/waypost/internal/ledger"
)

// folder applies events to snapshots. Live processing and replay use the
// same folder, so recovery can never drift from live behavior.
type folder struct {
	calc   *cost.Calculator
	logger *slog.Logger
}

// fold returns the snapshot with one event applied.
//
// Unrecognized types, future schema versions, and undecodable payloads are
// skipped and logged; the snapshot still advances LastAppliedSeq past them
// so a trailing bad entry does not force a rebuild on every read.
//
// Fold rules (shared by ApplyContribution and replay):
//   - member_count_updated: set the community-size sample; on the very
//     first event this also opens level 1 and its goal
//   - contribution.added: progress, reward, and cumulative all grow
//   - contribution.reward_added: reward and cumulative grow
//   - level_up_committed: consume the paid requirement (overflow carries
//     over), advance the level, recompute the goal with the sample frozen
//     by the preceding member_count_updated
//   - reward.decay_applied: shrink reward, floored at zero
func (f *folder) fold(snap ledger.Snapshot, ev ledger.Event) ledger.Snapshot {
	if snap.IsZero() {
		snap = ledger.Snapshot{
			EntityID:      ev.EntityID,
			Level:         1,
			GoalStartedAt: ev.Timestamp,
			SchemaVersion: ledger.SnapshotSchemaVersion,
		}
	}
	snap.LastAppliedSeq = ev.Seq

	if ev.SchemaVersion > ledger.EventSchemaVersion {
		f.skip(ev, "schema version from the future", nil)
		return snap
	}

	switch ev.Type {
	case ledger.TypeMemberCountUpdated:
		p, err := ev.MemberCountPayload()
		if err != nil {
			f.skip(ev, "undecodable payload", err)
			return snap
		}
		snap.MemberCount = p.MemberCount
		if snap.GoalCents == 0 {
			// First sample ever: open the level-1 goal.
			snap.GoalCents = f.calc.RequiredCents(snap.Level, snap.MemberCount)
			snap.GoalStartedAt = ev.Timestamp
		}

	case ledger.TypeContributionAdded:
		p, err := ev.ContributionPayload()
		if err != nil {
			f.skip(ev, "undecodable payload", err)
			return snap
		}
		snap.ProgressCents += p.AmountCents
		snap.RewardCents += p.AmountCents
		snap.CumulativeCents += p.AmountCents

	case ledger.TypeRewardContributionAdded:
		p, err := ev.ContributionPayload()
		if err != nil {
			f.skip(ev, "undecodable payload", err)
			return snap
		}
		snap.RewardCents += p.AmountCents
		snap.CumulativeCents += p.AmountCents

	case ledger.TypeLevelUpCommitted:
		p, err := ev.LevelUpPayload()
		if err != nil {
			f.skip(ev, "undecodable payload", err)
			return snap
		}
		snap.ProgressCents -= p.RequirementPaidCents
		if snap.ProgressCents < 0 {
			snap.ProgressCents = 0
		}
		snap.Level = p.ToLevel
		snap.GoalCents = f.calc.RequiredCents(snap.Level, snap.MemberCount)
		snap.GoalStartedAt = ev.Timestamp

	case ledger.TypeRewardDecayApplied:
		p, err := ev.RewardDecayPayload()
		if err != nil {
			f.skip(ev, "undecodable payload", err)
			return snap
		}
		snap.RewardCents -= p.AmountCents
		if snap.RewardCents < 0 {
			snap.RewardCents = 0
		}

	default:
		f.skip(ev, "unrecognized event type", nil)
	}

	return snap
}

func (f *folder) skip(ev ledger.Event, reason string, err error) {
	f.logger.Warn("skipping event during fold",
		"entity_id", ev.EntityID,
		"seq", ev.Seq,
		"type", ev.Type,
		"reason", reason,
		"error", err)
}
