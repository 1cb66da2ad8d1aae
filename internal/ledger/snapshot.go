package ledger

import "time"

// SnapshotSchemaVersion is the current snapshot encoding version.
const SnapshotSchemaVersion = 1

// Snapshot is the materialized current state of an entity.
//
// Exactly one current snapshot exists per entity. It is a cache: the event
// history is authoritative, and the snapshot is always reproducible by
// folding events 1..LastAppliedSeq from the empty initial state.
type Snapshot struct {
	// EntityID is the tracked entity.
	EntityID string `json:"entity_id"`
	// Level is the current level (starts at 1, never decreases).
	Level int `json:"level"`
	// ProgressCents is the progress accumulated toward the current goal.
	ProgressCents int64 `json:"progress_accumulated_cents"`
	// RewardCents is the decayable reward accumulator.
	RewardCents int64 `json:"reward_accumulated_cents"`
	// CumulativeCents is the lifetime sum of all recorded contributions.
	CumulativeCents int64 `json:"cumulative_contributions_cents"`
	// GoalCents is the requirement to cross from Level to Level+1, frozen
	// with the community-size sample at the last transition.
	GoalCents int64 `json:"goal_requirement_cents"`
	// MemberCount is the community-size sample frozen for the current goal.
	MemberCount int `json:"community_size_sample"`
	// GoalStartedAt is when the current goal opened.
	GoalStartedAt time.Time `json:"goal_started_at"`
	// LastAppliedSeq is the sequence of the most recent event folded in.
	LastAppliedSeq uint64 `json:"last_applied_sequence"`
	// SchemaVersion is the snapshot encoding version.
	SchemaVersion int `json:"schema_version"`
}

// IsZero reports whether the snapshot is the empty initial state
// (no events folded yet).
func (s Snapshot) IsZero() bool {
	return s.LastAppliedSeq == 0 && s.Level == 0
}
