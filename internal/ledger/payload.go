package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContributionPayload captures the payload for contribution.added and
// contribution.reward_added events.
type ContributionPayload struct {
	AmountCents int64 `json:"amount_cents"`
	// IdempotencyKey is the caller-supplied deduplication key.
	IdempotencyKey string `json:"idempotency_key"`
}

// LevelUpPayload captures the payload for progression.level_up_committed events.
type LevelUpPayload struct {
	FromLevel int `json:"from_level"`
	ToLevel   int `json:"to_level"`
	// RequirementPaidCents is the goal requirement consumed by the
	// transition. Progress beyond it carries over to the next level.
	RequirementPaidCents int64 `json:"requirement_paid_cents"`
}

// MemberCountPayload captures the payload for progression.member_count_updated
// events.
type MemberCountPayload struct {
	MemberCount int `json:"member_count"`
}

// RewardDecayPayload captures the payload for reward.decay_applied events.
type RewardDecayPayload struct {
	AmountCents int64 `json:"amount_cents"`
}

// NewEvent builds an unsequenced event of the given type with a marshaled
// payload. Seq is assigned by the store on append.
func NewEvent(entityID string, t Type, ts time.Time, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{
		EntityID:      entityID,
		Timestamp:     ts,
		Type:          t,
		SchemaVersion: EventSchemaVersion,
		Payload:       raw,
	}, nil
}

// ContributionPayload decodes the event payload as a ContributionPayload.
// Valid only for contribution events.
func (e Event) ContributionPayload() (ContributionPayload, error) {
	if !e.Type.IsContribution() {
		return ContributionPayload{}, fmt.Errorf("event %s is not a contribution", e.Type)
	}
	var p ContributionPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ContributionPayload{}, fmt.Errorf("decode %s payload (seq %d): %w", e.Type, e.Seq, err)
	}
	return p, nil
}

// LevelUpPayload decodes the event payload as a LevelUpPayload.
func (e Event) LevelUpPayload() (LevelUpPayload, error) {
	var p LevelUpPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return LevelUpPayload{}, fmt.Errorf("decode %s payload (seq %d): %w", e.Type, e.Seq, err)
	}
	return p, nil
}

// MemberCountPayload decodes the event payload as a MemberCountPayload.
func (e Event) MemberCountPayload() (MemberCountPayload, error) {
	var p MemberCountPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return MemberCountPayload{}, fmt.Errorf("decode %s payload (seq %d): %w", e.Type, e.Seq, err)
	}
	return p, nil
}

// RewardDecayPayload decodes the event payload as a RewardDecayPayload.
func (e Event) RewardDecayPayload() (RewardDecayPayload, error) {
	var p RewardDecayPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return RewardDecayPayload{}, fmt.Errorf("decode %s payload (seq %d): %w", e.Type, e.Seq, err)
	}
	return p, nil
}

// IdempotencyKey extracts the idempotency key from a contribution event.
// Returns "" for non-contribution events or undecodable payloads.
func (e Event) IdempotencyKey() string {
	if !e.Type.IsContribution() {
		return ""
	}
	p, err := e.ContributionPayload()
	if err != nil {
		return ""
	}
	return p.IdempotencyKey
}
