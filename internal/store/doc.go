// Package store defines the durable storage contract for entity event
// histories and snapshots, plus entity ID normalization shared by backends.
//
// Two backends implement the contract:
//   - file: one append-only JSONL event history per entity and one
//     atomically-overwritten JSON snapshot per entity (the canonical layout)
//   - sqlite: events and snapshots in a single WAL-mode SQLite database
//
// Both backends must satisfy the conformance suite in storetest.
package store
