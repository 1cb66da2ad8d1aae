// Package harness executes declarative progression scenarios for
// conformance testing.
//
// A scenario is a YAML file describing a sequence of operations against a
// single entity (contributions, member-count samples, reward decay, resets)
// plus assertions over the resulting event history and final state. The
// harness runs each scenario against an isolated file store with a
// deterministic clock and deterministic idempotency keys, so the produced
// event trace is byte-stable and can be pinned with golden files.
//
// Scenarios live in testdata/scenarios, golden traces in testdata/golden.
// Regenerate golden files with:
//
//	go test ./internal/harness -update
package harness
