package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/ledger"
)

func assertionResult(t *testing.T) *Result {
	t.Helper()
	ts := time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)

	mkEvent := func(seq uint64, typ ledger.Type, payload any) ledger.Event {
		ev, err := ledger.NewEvent("guild", typ, ts, payload)
		require.NoError(t, err)
		ev.Seq = seq
		return ev
	}

	return &Result{
		Final: ledger.Snapshot{
			EntityID:        "guild",
			Level:           2,
			ProgressCents:   50,
			RewardCents:     1100,
			CumulativeCents: 1100,
			GoalCents:       1050,
			MemberCount:     20,
			LastAppliedSeq:  5,
		},
		Events: []ledger.Event{
			mkEvent(1, ledger.TypeMemberCountUpdated, ledger.MemberCountPayload{MemberCount: 20}),
			mkEvent(2, ledger.TypeContributionAdded, ledger.ContributionPayload{AmountCents: 500, IdempotencyKey: "k1"}),
			mkEvent(3, ledger.TypeMemberCountUpdated, ledger.MemberCountPayload{MemberCount: 20}),
			mkEvent(4, ledger.TypeContributionAdded, ledger.ContributionPayload{AmountCents: 600, IdempotencyKey: "k2"}),
			mkEvent(5, ledger.TypeLevelUpCommitted, ledger.LevelUpPayload{FromLevel: 1, ToLevel: 2, RequirementPaidCents: 1050}),
		},
		LastLeveledUp: true,
	}
}

func TestCheckAssertions_AllPass(t *testing.T) {
	result := assertionResult(t)

	errs := result.CheckAssertions(&Scenario{
		Assertions: []Assertion{
			{Type: AssertFinalState, Expect: map[string]int64{"level": 2, "progress_cents": 50, "head_seq": 5}},
			{Type: AssertEventCount, Event: "progression.level_up_committed", Count: 1},
			{Type: AssertEventOrder, Events: []string{"contribution.added", "contribution.added", "progression.level_up_committed"}},
			{Type: AssertLeveledUp, Value: true},
		},
	})
	assert.Empty(t, errs)
}

func TestCheckAssertions_ReportsEveryFailure(t *testing.T) {
	result := assertionResult(t)

	errs := result.CheckAssertions(&Scenario{
		Assertions: []Assertion{
			{Type: AssertFinalState, Expect: map[string]int64{"level": 3}},
			{Type: AssertEventCount, Event: "reward.decay_applied", Count: 2},
			{Type: AssertEventOrder, Events: []string{"progression.level_up_committed", "contribution.added"}},
			{Type: AssertLeveledUp, Value: false},
		},
	})
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0].Error(), "level is 2, want 3")
	assert.Contains(t, errs[1].Error(), "occurs 0 times, want 2")
	assert.Contains(t, errs[2].Error(), "in order")
	assert.Contains(t, errs[3].Error(), "leveled_up is true, want false")
}

func TestCheckAssertions_EventOrderIsSubsequence(t *testing.T) {
	result := assertionResult(t)

	// Interleaved events are fine as long as relative order holds.
	errs := result.CheckAssertions(&Scenario{
		Assertions: []Assertion{
			{Type: AssertEventOrder, Events: []string{
				"progression.member_count_updated",
				"progression.member_count_updated",
				"progression.level_up_committed",
			}},
		},
	})
	assert.Empty(t, errs)
}
