package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a sequence of operations
// against one entity, with assertions over the resulting history and state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// EntityID is the entity all steps address. Defaults to "guild".
	EntityID string `yaml:"entity_id,omitempty"`

	// Members is the community-size sample used to bootstrap the entity
	// before the first step.
	Members int `yaml:"members"`

	// Steps is the operation sequence.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and event history.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Exactly one field must be set.
type Step struct {
	// Contribute applies a contribution.
	Contribute *ContributeStep `yaml:"contribute,omitempty"`

	// SetMembers records a fresh community-size sample.
	SetMembers *int `yaml:"set_members,omitempty"`

	// DecayCents shrinks the reward accumulator.
	DecayCents *int64 `yaml:"decay_cents,omitempty"`

	// Reset discards the entity's history and snapshot.
	Reset bool `yaml:"reset,omitempty"`
}

// ContributeStep applies one contribution.
type ContributeStep struct {
	AmountCents int64 `yaml:"amount_cents"`

	// Key is the idempotency key. Defaults to "step-<index>" (1-based),
	// so repeating a step with an explicit key exercises deduplication.
	Key string `yaml:"key,omitempty"`

	// Reward marks the contribution reward-only.
	Reward bool `yaml:"reward,omitempty"`

	// Members is an optional fresh sample to record with the contribution.
	Members int `yaml:"members,omitempty"`
}

// Assertion validates the final state or the event history.
type Assertion struct {
	// Type is one of final_state, event_count, event_order, leveled_up.
	Type string `yaml:"type"`

	// Expect maps final_state field names to expected values. Supported
	// fields: level, progress_cents, reward_cents, cumulative_cents,
	// goal_cents, member_count, head_seq.
	Expect map[string]int64 `yaml:"expect,omitempty"`

	// Event is the event type for event_count.
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of occurrences for event_count.
	Count int `yaml:"count"`

	// Events is the expected subsequence of event types for event_order.
	Events []string `yaml:"events,omitempty"`

	// Value is the expected leveled-up flag of the last contribution for
	// leveled_up.
	Value bool `yaml:"value"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertLeveledUp  = "leveled_up"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	if scenario.EntityID == "" {
		scenario.EntityID = "guild"
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		set := 0
		if step.Contribute != nil {
			set++
			if step.Contribute.AmountCents <= 0 {
				return fmt.Errorf("steps[%d].contribute: amount_cents must be positive", i)
			}
		}
		if step.SetMembers != nil {
			set++
		}
		if step.DecayCents != nil {
			set++
		}
		if step.Reset {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one operation per step", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for field := range a.Expect {
			if !knownStateField(field) {
				return fmt.Errorf("assertions[%d]: unknown final_state field %q", index, field)
			}
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertLeveledUp:
		// Value alone suffices.
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownStateField(field string) bool {
	switch field {
	case "level", "progress_cents", "reward_cents", "cumulative_cents",
		"goal_cents", "member_count", "head_seq":
		return true
	}
	return false
}
