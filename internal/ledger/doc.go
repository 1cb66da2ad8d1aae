// Package ledger defines the domain types shared across the progression
// engine: events, typed payloads, snapshots, contribution requests, and the
// typed error taxonomy.
//
// Events are immutable facts. The append-only event history is the
// authoritative record; snapshots are a materialized cache that is always
// reconstructible by folding events in sequence order.
package ledger
