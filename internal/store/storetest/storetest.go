// Package storetest provides a conformance suite that every store backend
// must pass. Backend test files call Run with a factory for a fresh store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/ledger"
	"github.com/waypost/waypost/internal/store"
)

// Factory creates a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the full conformance suite against the backend.
func Run(t *testing.T, factory Factory) {
	t.Run("EmptyHistory", func(t *testing.T) { testEmptyHistory(t, factory(t)) })
	t.Run("AppendAssignsGapFreeSequence", func(t *testing.T) { testAppendSequence(t, factory(t)) })
	t.Run("AppendBatchIsConsecutive", func(t *testing.T) { testAppendBatch(t, factory(t)) })
	t.Run("EventsRoundTrip", func(t *testing.T) { testEventsRoundTrip(t, factory(t)) })
	t.Run("EventsByType", func(t *testing.T) { testEventsByType(t, factory(t)) })
	t.Run("IdempotencyKeyLookup", func(t *testing.T) { testIdempotencyKey(t, factory(t)) })
	t.Run("SnapshotRoundTrip", func(t *testing.T) { testSnapshotRoundTrip(t, factory(t)) })
	t.Run("SnapshotOverwrite", func(t *testing.T) { testSnapshotOverwrite(t, factory(t)) })
	t.Run("ResetClearsLogAndSnapshot", func(t *testing.T) { testReset(t, factory(t)) })
	t.Run("EntitiesAreIndependent", func(t *testing.T) { testEntityIsolation(t, factory(t)) })
	t.Run("ConcurrentAppendsStayGapFree", func(t *testing.T) { testConcurrentAppends(t, factory(t)) })
}

func contribution(t *testing.T, entityID string, amount int64, key string) ledger.Event {
	t.Helper()
	ev, err := ledger.NewEvent(entityID, ledger.TypeContributionAdded,
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ledger.ContributionPayload{AmountCents: amount, IdempotencyKey: key})
	require.NoError(t, err)
	return ev
}

func testEmptyHistory(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	events, err := s.Events(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, events)

	head, err := s.HeadSeq(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), head)

	_, found, err := s.LoadSnapshot(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, found)
}

func testAppendSequence(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		stamped, err := s.Append(ctx, "pet-1", contribution(t, "pet-1", int64(i*100), fmt.Sprintf("k-%d", i)))
		require.NoError(t, err)
		require.Len(t, stamped, 1)
		assert.Equal(t, uint64(i), stamped[0].Seq)
	}

	head, err := s.HeadSeq(ctx, "pet-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), head)
}

func testAppendBatch(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Append(ctx, "pet-1", contribution(t, "pet-1", 100, "k-0"))
	require.NoError(t, err)

	stamped, err := s.Append(ctx, "pet-1",
		contribution(t, "pet-1", 200, "k-1"),
		contribution(t, "pet-1", 300, "k-2"),
		contribution(t, "pet-1", 400, "k-3"),
	)
	require.NoError(t, err)
	require.Len(t, stamped, 3)
	assert.Equal(t, uint64(2), stamped[0].Seq)
	assert.Equal(t, uint64(3), stamped[1].Seq)
	assert.Equal(t, uint64(4), stamped[2].Seq)
}

func testEventsRoundTrip(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	orig := contribution(t, "pet-1", 500, "k-1")
	_, err := s.Append(ctx, "pet-1", orig)
	require.NoError(t, err)

	events, err := s.Events(ctx, "pet-1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, "pet-1", got.EntityID)
	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, ledger.TypeContributionAdded, got.Type)
	assert.Equal(t, ledger.EventSchemaVersion, got.SchemaVersion)
	assert.True(t, got.Timestamp.Equal(orig.Timestamp), "timestamp %v != %v", got.Timestamp, orig.Timestamp)

	p, err := got.ContributionPayload()
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.AmountCents)
	assert.Equal(t, "k-1", p.IdempotencyKey)
}

func testEventsByType(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	member, err := ledger.NewEvent("pet-1", ledger.TypeMemberCountUpdated, time.Now().UTC(),
		ledger.MemberCountPayload{MemberCount: 12})
	require.NoError(t, err)

	_, err = s.Append(ctx, "pet-1", member, contribution(t, "pet-1", 100, "k-1"), contribution(t, "pet-1", 200, "k-2"))
	require.NoError(t, err)

	contribs, err := s.EventsByType(ctx, "pet-1", ledger.TypeContributionAdded)
	require.NoError(t, err)
	require.Len(t, contribs, 2)
	assert.Equal(t, uint64(2), contribs[0].Seq)
	assert.Equal(t, uint64(3), contribs[1].Seq)

	members, err := s.EventsByType(ctx, "pet-1", ledger.TypeMemberCountUpdated)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func testIdempotencyKey(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Append(ctx, "pet-1", contribution(t, "pet-1", 100, "don-42"))
	require.NoError(t, err)

	has, err := s.HasIdempotencyKey(ctx, "pet-1", "don-42")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasIdempotencyKey(ctx, "pet-1", "don-43")
	require.NoError(t, err)
	assert.False(t, has)

	// Keys are scoped per entity.
	has, err = s.HasIdempotencyKey(ctx, "pet-2", "don-42")
	require.NoError(t, err)
	assert.False(t, has)

	// Empty keys never match.
	has, err = s.HasIdempotencyKey(ctx, "pet-1", "")
	require.NoError(t, err)
	assert.False(t, has)
}

func testSnapshotRoundTrip(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	snap := ledger.Snapshot{
		EntityID:        "pet-1",
		Level:           3,
		ProgressCents:   455,
		RewardCents:     9000,
		CumulativeCents: 15000,
		GoalCents:       2050,
		MemberCount:     17,
		GoalStartedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastAppliedSeq:  41,
		SchemaVersion:   ledger.SnapshotSchemaVersion,
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, found, err := s.LoadSnapshot(ctx, "pet-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap.Level, got.Level)
	assert.Equal(t, snap.ProgressCents, got.ProgressCents)
	assert.Equal(t, snap.RewardCents, got.RewardCents)
	assert.Equal(t, snap.CumulativeCents, got.CumulativeCents)
	assert.Equal(t, snap.GoalCents, got.GoalCents)
	assert.Equal(t, snap.MemberCount, got.MemberCount)
	assert.Equal(t, snap.LastAppliedSeq, got.LastAppliedSeq)
	assert.True(t, got.GoalStartedAt.Equal(snap.GoalStartedAt))
}

func testSnapshotOverwrite(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	first := ledger.Snapshot{EntityID: "pet-1", Level: 1, LastAppliedSeq: 2, SchemaVersion: 1}
	require.NoError(t, s.SaveSnapshot(ctx, first))

	second := first
	second.Level = 2
	second.LastAppliedSeq = 9
	require.NoError(t, s.SaveSnapshot(ctx, second))

	got, found, err := s.LoadSnapshot(ctx, "pet-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, uint64(9), got.LastAppliedSeq)
}

func testReset(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Append(ctx, "pet-1", contribution(t, "pet-1", 100, "k-1"))
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(ctx, ledger.Snapshot{EntityID: "pet-1", Level: 1, LastAppliedSeq: 1}))

	require.NoError(t, s.Reset(ctx, "pet-1"))

	events, err := s.Events(ctx, "pet-1")
	require.NoError(t, err)
	assert.Empty(t, events)

	head, err := s.HeadSeq(ctx, "pet-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), head)

	_, found, err := s.LoadSnapshot(ctx, "pet-1")
	require.NoError(t, err)
	assert.False(t, found)

	has, err := s.HasIdempotencyKey(ctx, "pet-1", "k-1")
	require.NoError(t, err)
	assert.False(t, has, "reset must clear the idempotency index")

	// Sequences restart from 1 after a reset.
	stamped, err := s.Append(ctx, "pet-1", contribution(t, "pet-1", 100, "k-2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stamped[0].Seq)

	// Resetting an unknown entity is a no-op.
	require.NoError(t, s.Reset(ctx, "never-seen"))
}

func testEntityIsolation(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Append(ctx, "pet-1", contribution(t, "pet-1", 100, "a"))
	require.NoError(t, err)
	_, err = s.Append(ctx, "pet-2", contribution(t, "pet-2", 200, "b"))
	require.NoError(t, err)

	head1, err := s.HeadSeq(ctx, "pet-1")
	require.NoError(t, err)
	head2, err := s.HeadSeq(ctx, "pet-2")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head1)
	assert.Equal(t, uint64(1), head2)

	require.NoError(t, s.Reset(ctx, "pet-1"))

	events, err := s.Events(ctx, "pet-2")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func testConcurrentAppends(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	const goroutines = 10
	const perGoroutine = 5

	// Events are built up front: test helpers must not fail inside goroutines.
	batches := make([][]ledger.Event, goroutines)
	for g := 0; g < goroutines; g++ {
		for i := 0; i < perGoroutine; i++ {
			batches[g] = append(batches[g], contribution(t, "pet-1", 1, fmt.Sprintf("g%d-i%d", g, i)))
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, goroutines*perGoroutine)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(batch []ledger.Event) {
			defer wg.Done()
			for _, ev := range batch {
				if _, err := s.Append(ctx, "pet-1", ev); err != nil {
					errs <- err
				}
			}
		}(batches[g])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	events, err := s.Events(ctx, "pet-1")
	require.NoError(t, err)
	require.Len(t, events, goroutines*perGoroutine)

	// Sequences must be exactly 1..N in order with no gaps or duplicates.
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}
