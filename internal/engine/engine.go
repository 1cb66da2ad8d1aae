package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/waypost/waypost/internal/cost"
	"github.com/waypost/waypost/internal/ledger"
	"github.com/waypost/waypost/internal/store"
)

// Defaults for optional configuration fields.
const (
	// DefaultMaxLevel caps progression when no cap is configured.
	DefaultMaxLevel = 100
	// DefaultLockTimeout bounds entity lock acquisition.
	DefaultLockTimeout = 5 * time.Second
	// DefaultProgressCeilingCents is the largest accepted progress-affecting
	// contribution when no ceiling is configured.
	DefaultProgressCeilingCents = 500_000
	// DefaultRewardCeilingCents is the largest accepted reward-only
	// contribution when no ceiling is configured.
	DefaultRewardCeilingCents = 100_000
)

// Config holds the engine's operating parameters.
type Config struct {
	// MaxLevel is the level cap; no level-up is committed at or above it.
	MaxLevel int
	// ProgressCeilingCents is the per-contribution ceiling for
	// progress-affecting contributions.
	ProgressCeilingCents int64
	// RewardCeilingCents is the per-contribution ceiling for reward-only
	// contributions. Smaller than the progress ceiling by convention.
	RewardCeilingCents int64
	// DefaultMemberCount seeds the community-size sample at lazy bootstrap
	// when no hint is available.
	DefaultMemberCount int
	// LockTimeout bounds entity lock acquisition.
	LockTimeout time.Duration
}

// Engine is the progression controller.
type Engine struct {
	store  store.Store
	calc   *cost.Calculator
	fold   *folder
	locks  *lockRegistry
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the wall clock. Used by tests and the scenario
// harness for deterministic event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine over the given store and cost calculator.
func New(st store.Store, calc *cost.Calculator, cfg Config, opts ...Option) *Engine {
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = DefaultMaxLevel
	}
	if cfg.ProgressCeilingCents <= 0 {
		cfg.ProgressCeilingCents = DefaultProgressCeilingCents
	}
	if cfg.RewardCeilingCents <= 0 {
		cfg.RewardCeilingCents = DefaultRewardCeilingCents
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	e := &Engine{
		store:  st,
		calc:   calc,
		locks:  newLockRegistry(),
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.fold = &folder{calc: calc, logger: e.logger}
	return e
}

// ApplyContribution validates, deduplicates, and applies one contribution,
// committing a level-up when a progress-affecting contribution reaches the
// current goal.
//
// Duplicates resolve to ApplyResult{Duplicate: true} with the unchanged
// state. Failures return a typed *ledger.Error: validation (nothing
// recorded), lock timeout (retryable), or persistence (contribution
// unconfirmed; the log self-heals the snapshot on the next read).
func (e *Engine) ApplyContribution(ctx context.Context, req ledger.ContributionRequest) (ledger.ApplyResult, error) {
	entityID, err := store.NormalizeEntityID(req.EntityID)
	if err != nil {
		return ledger.ApplyResult{}, ledger.NewValidationError(req.EntityID, err.Error())
	}

	if err := e.validateAmount(entityID, req); err != nil {
		return ledger.ApplyResult{}, err
	}
	if req.IdempotencyKey == "" {
		return ledger.ApplyResult{}, ledger.NewValidationError(entityID, "idempotency key is required")
	}

	// Fast path: a known duplicate resolves without taking the lock.
	dup, err := e.store.HasIdempotencyKey(ctx, entityID, req.IdempotencyKey)
	if err != nil {
		return ledger.ApplyResult{}, ledger.NewCorruptionError(entityID, "idempotency lookup failed", err)
	}
	if dup {
		return e.duplicateResult(ctx, entityID)
	}

	release, err := e.locks.acquire(ctx, entityID, e.cfg.LockTimeout)
	if err != nil {
		return ledger.ApplyResult{}, err
	}
	defer release()

	// Authoritative re-check: a racing submission with the same key may
	// have won the lock first.
	dup, err = e.store.HasIdempotencyKey(ctx, entityID, req.IdempotencyKey)
	if err != nil {
		return ledger.ApplyResult{}, ledger.NewCorruptionError(entityID, "idempotency lookup failed", err)
	}

	snap, err := e.currentLocked(ctx, entityID, req.MemberCountHint)
	if err != nil {
		return ledger.ApplyResult{}, err
	}
	if dup {
		return ledger.ApplyResult{Snapshot: snap, Duplicate: true}, nil
	}

	prospective := snap.ProgressCents
	if req.AffectsProgress {
		prospective += req.AmountCents
	}
	willLevelUp := req.AffectsProgress &&
		snap.Level < e.cfg.MaxLevel &&
		prospective >= snap.GoalCents

	ts := e.now().UTC()
	var events []ledger.Event

	if willLevelUp {
		// Freeze the sample for the next goal before the level-up event,
		// so replay sees it in the same order.
		sample := snap.MemberCount
		if req.MemberCountHint > 0 {
			sample = req.MemberCountHint
		}
		ev, err := ledger.NewEvent(entityID, ledger.TypeMemberCountUpdated, ts,
			ledger.MemberCountPayload{MemberCount: sample})
		if err != nil {
			return ledger.ApplyResult{}, ledger.NewPersistenceError(entityID, "encode event", err)
		}
		events = append(events, ev)
	}

	contribType := ledger.TypeRewardContributionAdded
	if req.AffectsProgress {
		contribType = ledger.TypeContributionAdded
	}
	contribEv, err := ledger.NewEvent(entityID, contribType, ts, ledger.ContributionPayload{
		AmountCents:    req.AmountCents,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return ledger.ApplyResult{}, ledger.NewPersistenceError(entityID, "encode event", err)
	}
	events = append(events, contribEv)

	if willLevelUp {
		ev, err := ledger.NewEvent(entityID, ledger.TypeLevelUpCommitted, ts, ledger.LevelUpPayload{
			FromLevel:            snap.Level,
			ToLevel:              snap.Level + 1,
			RequirementPaidCents: snap.GoalCents,
		})
		if err != nil {
			return ledger.ApplyResult{}, ledger.NewPersistenceError(entityID, "encode event", err)
		}
		events = append(events, ev)
	}

	stamped, err := e.store.Append(ctx, entityID, events...)
	if err != nil {
		return ledger.ApplyResult{}, ledger.NewPersistenceError(entityID, "event append failed, contribution not applied", err)
	}

	for _, ev := range stamped {
		snap = e.fold.fold(snap, ev)
	}

	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		// The events are durable, so the contribution IS recorded; the
		// next read rebuilds the snapshot from the log.
		e.logger.Error("snapshot write failed after append, will self-heal on next read",
			"entity_id", entityID, "head_seq", snap.LastAppliedSeq, "error", err)
		return ledger.ApplyResult{}, ledger.NewPersistenceError(entityID, "snapshot write failed, state recovers from log", err)
	}

	if willLevelUp {
		e.logger.Info("level-up committed",
			"entity_id", entityID,
			"from_level", snap.Level-1,
			"to_level", snap.Level,
			"carried_progress_cents", snap.ProgressCents,
			"new_goal_cents", snap.GoalCents,
			"member_count", snap.MemberCount)
	}

	return ledger.ApplyResult{Snapshot: snap, LeveledUp: willLevelUp}, nil
}

// GetState returns the entity's current snapshot. The consistent fast path
// is lock-free; a missing or stale snapshot takes the lock and self-heals
// from the event history. Unknown entities bootstrap lazily at level 1.
func (e *Engine) GetState(ctx context.Context, entityID string) (ledger.Snapshot, error) {
	id, err := store.NormalizeEntityID(entityID)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewValidationError(entityID, err.Error())
	}

	snap, found, err := e.store.LoadSnapshot(ctx, id)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewCorruptionError(id, "snapshot read failed", err)
	}
	if found {
		head, err := e.store.HeadSeq(ctx, id)
		if err != nil {
			return ledger.Snapshot{}, ledger.NewCorruptionError(id, "head sequence read failed", err)
		}
		if head > 0 && snap.LastAppliedSeq == head {
			return snap, nil
		}
	}

	release, err := e.locks.acquire(ctx, id, e.cfg.LockTimeout)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer release()

	return e.currentLocked(ctx, id, 0)
}

// Bootstrap creates the entity's level-1 state with the given community-size
// sample. Idempotent: an already-bootstrapped entity returns its current
// state unchanged.
func (e *Engine) Bootstrap(ctx context.Context, entityID string, memberCount int) (ledger.Snapshot, error) {
	id, err := store.NormalizeEntityID(entityID)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewValidationError(entityID, err.Error())
	}
	if memberCount < 0 {
		return ledger.Snapshot{}, ledger.NewValidationError(id, "member count must not be negative")
	}

	release, err := e.locks.acquire(ctx, id, e.cfg.LockTimeout)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer release()

	head, err := e.store.HeadSeq(ctx, id)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewCorruptionError(id, "head sequence read failed", err)
	}
	if head > 0 {
		return e.currentLocked(ctx, id, 0)
	}
	return e.bootstrapLocked(ctx, id, memberCount)
}

// UpdateMemberCount records a fresh community-size sample. The current goal
// keeps the sample frozen at its opening; the new sample is the fallback
// for the next transition.
func (e *Engine) UpdateMemberCount(ctx context.Context, entityID string, memberCount int) (ledger.Snapshot, error) {
	id, err := store.NormalizeEntityID(entityID)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewValidationError(entityID, err.Error())
	}
	if memberCount < 0 {
		return ledger.Snapshot{}, ledger.NewValidationError(id, "member count must not be negative")
	}

	release, err := e.locks.acquire(ctx, id, e.cfg.LockTimeout)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer release()

	snap, err := e.currentLocked(ctx, id, memberCount)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	ev, err := ledger.NewEvent(id, ledger.TypeMemberCountUpdated, e.now().UTC(),
		ledger.MemberCountPayload{MemberCount: memberCount})
	if err != nil {
		return ledger.Snapshot{}, ledger.NewPersistenceError(id, "encode event", err)
	}
	stamped, err := e.store.Append(ctx, id, ev)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewPersistenceError(id, "event append failed", err)
	}

	snap = e.fold.fold(snap, stamped[0])
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		e.logger.Error("snapshot write failed after append, will self-heal on next read",
			"entity_id", id, "head_seq", snap.LastAppliedSeq, "error", err)
		return ledger.Snapshot{}, ledger.NewPersistenceError(id, "snapshot write failed, state recovers from log", err)
	}
	return snap, nil
}

// ApplyRewardDecay shrinks the reward accumulator through its own recorded
// event type. This is the only sanctioned way the reward accumulator
// decreases; it never touches progress or level.
func (e *Engine) ApplyRewardDecay(ctx context.Context, entityID string, amountCents int64) (ledger.Snapshot, error) {
	id, err := store.NormalizeEntityID(entityID)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewValidationError(entityID, err.Error())
	}
	if amountCents <= 0 {
		return ledger.Snapshot{}, ledger.NewValidationError(id, "decay amount must be positive")
	}

	release, err := e.locks.acquire(ctx, id, e.cfg.LockTimeout)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer release()

	snap, err := e.currentLocked(ctx, id, 0)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	ev, err := ledger.NewEvent(id, ledger.TypeRewardDecayApplied, e.now().UTC(),
		ledger.RewardDecayPayload{AmountCents: amountCents})
	if err != nil {
		return ledger.Snapshot{}, ledger.NewPersistenceError(id, "encode event", err)
	}
	stamped, err := e.store.Append(ctx, id, ev)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewPersistenceError(id, "event append failed", err)
	}

	snap = e.fold.fold(snap, stamped[0])
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		e.logger.Error("snapshot write failed after append, will self-heal on next read",
			"entity_id", id, "head_seq", snap.LastAppliedSeq, "error", err)
		return ledger.Snapshot{}, ledger.NewPersistenceError(id, "snapshot write failed, state recovers from log", err)
	}
	return snap, nil
}

// ResetEntity clears the entity's event history and snapshot together.
// This is the only operation that ever discards history.
func (e *Engine) ResetEntity(ctx context.Context, entityID string) error {
	id, err := store.NormalizeEntityID(entityID)
	if err != nil {
		return ledger.NewValidationError(entityID, err.Error())
	}

	release, err := e.locks.acquire(ctx, id, e.cfg.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	if err := e.store.Reset(ctx, id); err != nil {
		return ledger.NewPersistenceError(id, "reset failed", err)
	}
	e.logger.Info("entity reset", "entity_id", id)
	return nil
}

// validateAmount checks a contribution amount against the kind's ceiling.
// Progress-affecting contributions allow a larger ceiling than reward-only
// ones.
func (e *Engine) validateAmount(entityID string, req ledger.ContributionRequest) error {
	if req.AmountCents <= 0 {
		return ledger.NewValidationError(entityID, "amount must be positive")
	}
	ceiling := e.cfg.RewardCeilingCents
	if req.AffectsProgress {
		ceiling = e.cfg.ProgressCeilingCents
	}
	if req.AmountCents > ceiling {
		return ledger.NewValidationError(entityID,
			fmt.Sprintf("amount %d exceeds ceiling %d", req.AmountCents, ceiling))
	}
	return nil
}

// duplicateResult resolves an idempotent no-op: the current state, marked
// as a duplicate, reported as success.
func (e *Engine) duplicateResult(ctx context.Context, entityID string) (ledger.ApplyResult, error) {
	snap, err := e.GetState(ctx, entityID)
	if err != nil {
		return ledger.ApplyResult{}, err
	}
	return ledger.ApplyResult{Snapshot: snap, Duplicate: true}, nil
}

// currentLocked returns the entity's up-to-date snapshot. Caller must hold
// the entity lock. Heals a missing or stale snapshot from the event
// history; bootstraps a never-seen entity.
func (e *Engine) currentLocked(ctx context.Context, entityID string, memberCountHint int) (ledger.Snapshot, error) {
	head, err := e.store.HeadSeq(ctx, entityID)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewCorruptionError(entityID, "head sequence read failed", err)
	}

	if head == 0 {
		sample := e.cfg.DefaultMemberCount
		if memberCountHint > 0 {
			sample = memberCountHint
		}
		return e.bootstrapLocked(ctx, entityID, sample)
	}

	snap, found, err := e.store.LoadSnapshot(ctx, entityID)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewCorruptionError(entityID, "snapshot read failed", err)
	}
	if found && snap.LastAppliedSeq == head {
		return snap, nil
	}

	if found {
		e.logger.Warn("snapshot stale, rebuilding from event history",
			"entity_id", entityID, "snapshot_seq", snap.LastAppliedSeq, "head_seq", head)
	} else {
		e.logger.Warn("snapshot missing, rebuilding from event history",
			"entity_id", entityID, "head_seq", head)
	}

	rebuilt, err := e.replaySnapshot(ctx, entityID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if err := e.store.SaveSnapshot(ctx, rebuilt); err != nil {
		return ledger.Snapshot{}, ledger.NewPersistenceError(entityID, "rebuilt snapshot write failed", err)
	}
	return rebuilt, nil
}

// bootstrapLocked creates the level-1 state for a fresh entity by emitting
// the initial member-count sample. Caller must hold the entity lock.
func (e *Engine) bootstrapLocked(ctx context.Context, entityID string, memberCount int) (ledger.Snapshot, error) {
	ev, err := ledger.NewEvent(entityID, ledger.TypeMemberCountUpdated, e.now().UTC(),
		ledger.MemberCountPayload{MemberCount: memberCount})
	if err != nil {
		return ledger.Snapshot{}, ledger.NewPersistenceError(entityID, "encode event", err)
	}
	stamped, err := e.store.Append(ctx, entityID, ev)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewPersistenceError(entityID, "bootstrap append failed", err)
	}

	snap := e.fold.fold(ledger.Snapshot{}, stamped[0])
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		e.logger.Error("snapshot write failed after append, will self-heal on next read",
			"entity_id", entityID, "head_seq", snap.LastAppliedSeq, "error", err)
		return ledger.Snapshot{}, ledger.NewPersistenceError(entityID, "snapshot write failed, state recovers from log", err)
	}

	e.logger.Info("entity bootstrapped",
		"entity_id", entityID, "member_count", memberCount, "goal_cents", snap.GoalCents)
	return snap, nil
}
