// Package sqlite implements the store contract on a single SQLite database.
// Uses WAL mode for concurrent read access during writes.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/waypost/waypost/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Store is the SQLite-backed store implementation.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for skipped-entry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stamps consecutive sequence numbers and inserts all events in one
// transaction. Sequence assignment and the insert commit together, so the
// per-entity history stays gap-free even under concurrent appenders.
func (s *Store) Append(ctx context.Context, entityID string, events ...ledger.Event) ([]ledger.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var head uint64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events WHERE entity_id = ?
	`, entityID).Scan(&head); err != nil {
		return nil, fmt.Errorf("append events: read head seq: %w", err)
	}

	stamped := make([]ledger.Event, len(events))
	for i, ev := range events {
		head++
		ev.EntityID = entityID
		ev.Seq = head

		_, err := tx.ExecContext(ctx, `
			INSERT INTO events
			(entity_id, seq, ts, type, schema_version, payload, idempotency_key)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			ev.EntityID,
			ev.Seq,
			ev.Timestamp.UTC().Format(time.RFC3339Nano),
			string(ev.Type),
			ev.SchemaVersion,
			string(ev.Payload),
			ev.IdempotencyKey(),
		)
		if err != nil {
			return nil, fmt.Errorf("append events: insert seq %d: %w", ev.Seq, err)
		}
		stamped[i] = ev
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append events: commit: %w", err)
	}
	return stamped, nil
}

// Events returns the entity's full event history ordered by seq.
func (s *Store) Events(ctx context.Context, entityID string) ([]ledger.Event, error) {
	return s.queryEvents(ctx, `
		SELECT entity_id, seq, ts, type, schema_version, payload
		FROM events
		WHERE entity_id = ?
		ORDER BY seq ASC
	`, entityID)
}

// EventsByType returns the entity's events of one type ordered by seq.
func (s *Store) EventsByType(ctx context.Context, entityID string, t ledger.Type) ([]ledger.Event, error) {
	return s.queryEvents(ctx, `
		SELECT entity_id, seq, ts, type, schema_version, payload
		FROM events
		WHERE entity_id = ? AND type = ?
		ORDER BY seq ASC
	`, entityID, string(t))
}

// HeadSeq returns the highest assigned sequence for the entity.
func (s *Store) HeadSeq(ctx context.Context, entityID string) (uint64, error) {
	var head uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events WHERE entity_id = ?
	`, entityID).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("read head seq: %w", err)
	}
	return head, nil
}

// HasIdempotencyKey reports whether a contribution with the key is recorded.
func (s *Store) HasIdempotencyKey(ctx context.Context, entityID, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE entity_id = ? AND idempotency_key = ?
	`, entityID, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return count > 0, nil
}

// LoadSnapshot reads the entity's current snapshot. An undecodable stored
// body is reported as missing (and logged) so the caller rebuilds from the
// event history, which is authoritative.
func (s *Store) LoadSnapshot(ctx context.Context, entityID string) (ledger.Snapshot, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM snapshots WHERE entity_id = ?
	`, entityID).Scan(&body)
	if err == sql.ErrNoRows {
		return ledger.Snapshot{}, false, nil
	}
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap ledger.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		s.logger.Warn("snapshot row corrupt, will rebuild from event history",
			"entity_id", entityID, "error", err)
		return ledger.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// SaveSnapshot replaces the entity's snapshot row. The upsert is a single
// statement, so readers never observe a partial snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (entity_id, last_applied_seq, body)
		VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			last_applied_seq = excluded.last_applied_seq,
			body = excluded.body
	`, snap.EntityID, snap.LastAppliedSeq, string(body))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Reset deletes the entity's event history and snapshot in one transaction.
func (s *Store) Reset(ctx context.Context, entityID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset entity: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("reset entity: delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("reset entity: delete snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset entity: commit: %w", err)
	}
	return nil
}

// queryEvents runs an event query and scans the results.
// Rows that fail to scan or carry an unparseable timestamp are skipped and
// logged, not fatal.
func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]ledger.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ledger.Event{}
	for rows.Next() {
		var ev ledger.Event
		var ts, typ, payload string
		if err := rows.Scan(&ev.EntityID, &ev.Seq, &ts, &typ, &ev.SchemaVersion, &payload); err != nil {
			s.logger.Warn("skipping unscannable event row", "error", err)
			continue
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			s.logger.Warn("skipping event with unparseable timestamp",
				"entity_id", ev.EntityID, "seq", ev.Seq, "error", err)
			continue
		}
		ev.Timestamp = parsed
		ev.Type = ledger.Type(typ)
		ev.Payload = json.RawMessage(payload)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
