package store

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/waypost/waypost/internal/ledger"
)

// Store provides durable storage for entity event histories and snapshots.
//
// Contract:
//   - Append assigns strictly increasing, gap-free sequence numbers per
//     entity (starting at 1) under a synchronization scope internal to the
//     store, and all passed events are durable before Append returns.
//     Multi-event appends commit atomically: either every event is recorded
//     in order or none is.
//   - SaveSnapshot overwrites atomically (write-temp-then-replace or a
//     transaction). Readers never observe a partial snapshot.
//   - Reset clears an entity's event history and snapshot together. No
//     other update or delete operation exists.
//   - Events and EventsByType return events in sequence order. Entries that
//     cannot be decoded are skipped, not fatal; the event history being
//     unreadable as a whole is the only corruption surfaced as an error.
type Store interface {
	// Append stamps the events with consecutive sequence numbers and
	// persists them durably and atomically. Returns the stamped events.
	Append(ctx context.Context, entityID string, events ...ledger.Event) ([]ledger.Event, error)

	// Events returns the entity's full event history in sequence order.
	Events(ctx context.Context, entityID string) ([]ledger.Event, error)

	// EventsByType returns the entity's events of one type in sequence order.
	EventsByType(ctx context.Context, entityID string, t ledger.Type) ([]ledger.Event, error)

	// HeadSeq returns the highest assigned sequence for the entity
	// (0 if no events exist).
	HeadSeq(ctx context.Context, entityID string) (uint64, error)

	// HasIdempotencyKey reports whether a contribution with the key is
	// already recorded for the entity.
	HasIdempotencyKey(ctx context.Context, entityID, key string) (bool, error)

	// LoadSnapshot returns the entity's current snapshot.
	// found is false if no snapshot exists.
	LoadSnapshot(ctx context.Context, entityID string) (snap ledger.Snapshot, found bool, err error)

	// SaveSnapshot atomically overwrites the entity's current snapshot.
	SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error

	// Reset clears the entity's event history and snapshot together.
	// Resetting an unknown entity is a no-op.
	Reset(ctx context.Context, entityID string) error

	// Close releases backend resources.
	Close() error
}

// NormalizeEntityID canonicalizes an entity ID for use as a store key.
// IDs are NFC-normalized so visually identical IDs map to the same entity,
// and restricted to characters safe for filenames.
func NormalizeEntityID(id string) (string, error) {
	id = strings.TrimSpace(norm.NFC.String(id))
	if id == "" {
		return "", fmt.Errorf("entity id must not be empty")
	}

	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	out := b.String()
	if strings.Trim(out, "-._") == "" {
		return "", fmt.Errorf("entity id %q has no usable characters", id)
	}
	return out, nil
}
