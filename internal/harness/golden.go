package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// renderTrace produces the byte-stable trace for golden comparison: the
// scenario name, every event in sequence order, and the final accumulator
// state. Timestamps are omitted so the format survives clock changes.
func renderTrace(scenario *Scenario, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenario.Name)
	for _, ev := range result.Events {
		fmt.Fprintf(&buf, "%3d %s %s\n", ev.Seq, ev.Type, ev.Payload)
	}
	fmt.Fprintf(&buf, "final: level=%d progress=%d reward=%d cumulative=%d goal=%d members=%d head=%d\n",
		result.Final.Level,
		result.Final.ProgressCents,
		result.Final.RewardCents,
		result.Final.CumulativeCents,
		result.Final.GoalCents,
		result.Final.MemberCount,
		result.Final.LastAppliedSeq)
	return buf.Bytes()
}

// RunWithGolden executes a scenario, checks its assertions, and pins the
// produced trace against testdata/golden/<name>.golden.
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(t.TempDir(), scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, aerr := range result.CheckAssertions(scenario) {
		t.Error(aerr)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, renderTrace(scenario, result))
}
