package ledger

// ContributionRequest is the input to ApplyContribution. It is not persisted
// as-is: accepted requests become contribution events.
type ContributionRequest struct {
	// EntityID is the tracked entity to apply the contribution to.
	EntityID string
	// AmountCents is the contribution amount. Must be positive and within
	// the configured ceiling for the contribution kind.
	AmountCents int64
	// AffectsProgress selects the contribution kind: progress-affecting
	// contributions count toward the current goal, reward-only ones never
	// trigger a level-up.
	AffectsProgress bool
	// IdempotencyKey deduplicates retried submissions. A key already
	// recorded in the entity's history makes the request a no-op.
	IdempotencyKey string
	// MemberCountHint is an optional fresh community-size sample obtained
	// before lock acquisition. Values <= 0 mean no hint; the last known
	// sample is the fallback.
	MemberCountHint int
}

// ApplyResult is the outcome of a successfully resolved ApplyContribution.
type ApplyResult struct {
	// Snapshot is the resulting entity state.
	Snapshot Snapshot
	// LeveledUp reports whether this contribution committed a level-up.
	LeveledUp bool
	// Duplicate reports an idempotent no-op: the key was already recorded
	// and Snapshot is the unchanged current state.
	Duplicate bool
}
