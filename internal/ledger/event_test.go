package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestType_IsValid tests event type validity checks.
func TestType_IsValid(t *testing.T) {
	assert.True(t, TypeContributionAdded.IsValid())
	assert.True(t, Type("custom.event").IsValid())
	assert.False(t, Type("").IsValid())
	assert.False(t, Type("   ").IsValid())
}

// TestType_Domain tests the domain prefix extraction.
func TestType_Domain(t *testing.T) {
	tests := []struct {
		typ    Type
		domain string
	}{
		{TypeContributionAdded, "contribution"},
		{TypeRewardContributionAdded, "contribution"},
		{TypeLevelUpCommitted, "progression"},
		{TypeMemberCountUpdated, "progression"},
		{TypeRewardDecayApplied, "reward"},
		{Type("nodot"), "nodot"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.domain, tt.typ.Domain(), "type %s", tt.typ)
	}
}

// TestType_IsContribution tests contribution classification.
func TestType_IsContribution(t *testing.T) {
	assert.True(t, TypeContributionAdded.IsContribution())
	assert.True(t, TypeRewardContributionAdded.IsContribution())
	assert.False(t, TypeLevelUpCommitted.IsContribution())
	assert.False(t, TypeMemberCountUpdated.IsContribution())
	assert.False(t, TypeRewardDecayApplied.IsContribution())
}

// TestNewEvent tests event construction with a marshaled payload.
func TestNewEvent(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ev, err := NewEvent("pet-1", TypeContributionAdded, ts, ContributionPayload{
		AmountCents:    500,
		IdempotencyKey: "don-123",
	})
	require.NoError(t, err)

	assert.Equal(t, "pet-1", ev.EntityID)
	assert.Equal(t, uint64(0), ev.Seq, "seq is assigned by the store, not the constructor")
	assert.Equal(t, ts, ev.Timestamp)
	assert.Equal(t, TypeContributionAdded, ev.Type)
	assert.Equal(t, EventSchemaVersion, ev.SchemaVersion)
	assert.JSONEq(t, `{"amount_cents":500,"idempotency_key":"don-123"}`, string(ev.Payload))
}
