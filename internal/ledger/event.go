package ledger

import (
	"encoding/json"
	"strings"
	"time"
)

// Type identifies the type of a ledger event.
type Type string

// Contribution events.
const (
	// TypeContributionAdded records a progress-affecting contribution.
	TypeContributionAdded Type = "contribution.added"
	// TypeRewardContributionAdded records a reward-only contribution.
	TypeRewardContributionAdded Type = "contribution.reward_added"
)

// Progression events.
const (
	// TypeLevelUpCommitted records a committed level transition.
	TypeLevelUpCommitted Type = "progression.level_up_committed"
	// TypeMemberCountUpdated records a community-size sample change.
	// Emitted at bootstrap, at the instant a level-up is committed, and by
	// the administrative sample update.
	TypeMemberCountUpdated Type = "progression.member_count_updated"
)

// Reward events.
const (
	// TypeRewardDecayApplied records a decay adjustment to the reward
	// accumulator. Emitted by the external decay process, never by
	// contribution handling.
	TypeRewardDecayApplied Type = "reward.decay_applied"
)

// EventSchemaVersion is the current encoding version stamped on new events.
// Decoders must tolerate events from future versions by skipping them.
const EventSchemaVersion = 1

// Event represents an immutable fact in an entity's event history.
//
// Seq is assigned by the store on append and is strictly increasing and
// gap-free per entity, starting at 1. Events are never mutated or deleted
// except by a whole-entity administrative reset.
type Event struct {
	// EntityID is the tracked entity this event belongs to.
	EntityID string `json:"entity_id"`
	// Seq is the event sequence number within the entity (starts at 1).
	// Assigned by the store on append.
	Seq uint64 `json:"seq"`
	// Timestamp is when the event was recorded.
	Timestamp time.Time `json:"ts"`
	// Type identifies the kind of event.
	Type Type `json:"type"`
	// SchemaVersion is the payload encoding version.
	SchemaVersion int `json:"schema_version"`
	// Payload holds event-specific data as JSON.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "contribution").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// IsContribution reports whether the event records a monetary contribution.
func (t Type) IsContribution() bool {
	return t == TypeContributionAdded || t == TypeRewardContributionAdded
}
