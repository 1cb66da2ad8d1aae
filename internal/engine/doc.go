// Package engine implements the progression controller: the state machine
// that accepts contributions, decides threshold crossings, appends events,
// and maintains snapshots.
//
// # Single-Writer Discipline
//
// All mutations for one entity happen under that entity's exclusive lock.
// The threshold-crossing decision must be atomic: two racing contributions
// must not both observe "not yet crossed" (losing a level-up) nor both
// trigger separate level-ups. Unrelated entities never contend. Snapshot
// reads may bypass the lock and tolerate eventual consistency.
//
// # Replay Equals Live
//
// Live application and recovery replay share the same fold rules
// (fold.go). There is no separate "replay mode": folding the full event
// history from the empty initial state reproduces the live snapshot
// exactly, which is what makes the snapshot disposable and the event
// history authoritative.
//
// # Crash Safety
//
// The events for one contribution (member-count freeze, contribution,
// level-up) are appended as one atomic batch. A crash between the append
// and the snapshot write is always safe: the staleness check on the next
// read triggers a rebuild from the log.
package engine
