package harness

import (
	"fmt"

	"github.com/waypost/waypost/internal/ledger"
)

// AssertionError reports one failed scenario assertion.
type AssertionError struct {
	Index   int
	Type    string
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertions[%d] %s: %s", e.Index, e.Type, e.Message)
}

// CheckAssertions evaluates every scenario assertion against the result,
// returning one error per failure.
func (r *Result) CheckAssertions(scenario *Scenario) []error {
	var errs []error
	for i, a := range scenario.Assertions {
		if err := r.check(i, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (r *Result) check(index int, a Assertion) error {
	switch a.Type {
	case AssertFinalState:
		for field, want := range a.Expect {
			got := r.stateField(field)
			if got != want {
				return &AssertionError{
					Index:   index,
					Type:    a.Type,
					Message: fmt.Sprintf("%s is %d, want %d", field, got, want),
				}
			}
		}

	case AssertEventCount:
		count := 0
		for _, ev := range r.Events {
			if ev.Type == ledger.Type(a.Event) {
				count++
			}
		}
		if count != a.Count {
			return &AssertionError{
				Index:   index,
				Type:    a.Type,
				Message: fmt.Sprintf("%s occurs %d times, want %d", a.Event, count, a.Count),
			}
		}

	case AssertEventOrder:
		// Subsequence match over event types.
		next := 0
		for _, ev := range r.Events {
			if next < len(a.Events) && ev.Type == ledger.Type(a.Events[next]) {
				next++
			}
		}
		if next != len(a.Events) {
			return &AssertionError{
				Index:   index,
				Type:    a.Type,
				Message: fmt.Sprintf("history does not contain %q in order (matched %d of %d)", a.Events, next, len(a.Events)),
			}
		}

	case AssertLeveledUp:
		if r.LastLeveledUp != a.Value {
			return &AssertionError{
				Index:   index,
				Type:    a.Type,
				Message: fmt.Sprintf("last contribution leveled_up is %v, want %v", r.LastLeveledUp, a.Value),
			}
		}
	}
	return nil
}

func (r *Result) stateField(field string) int64 {
	switch field {
	case "level":
		return int64(r.Final.Level)
	case "progress_cents":
		return r.Final.ProgressCents
	case "reward_cents":
		return r.Final.RewardCents
	case "cumulative_cents":
		return r.Final.CumulativeCents
	case "goal_cents":
		return r.Final.GoalCents
	case "member_count":
		return int64(r.Final.MemberCount)
	case "head_seq":
		return int64(r.Final.LastAppliedSeq)
	}
	return 0
}
