// Package file implements the canonical file-backed store: one append-only,
// line-delimited (JSONL) event history per entity and one atomically
// overwritten JSON snapshot per entity.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/waypost/waypost/internal/ledger"
)

const (
	eventsSuffix   = ".events.jsonl"
	snapshotSuffix = ".snapshot.json"
)

// Store is the file-backed store implementation.
//
// Sequence assignment happens under a narrow per-entity mutex that covers
// only the append itself, independent of any engine-level transition lock.
type Store struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex // guards entities
	entities map[string]*entityState
}

// entityState is the in-memory index for one entity's event history.
// Rebuilt lazily from the JSONL file on first access.
type entityState struct {
	mu      sync.Mutex
	loaded  bool
	headSeq uint64
	keys    map[string]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for skipped-entry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens a file store rooted at dir.
// The directory is created if it does not exist.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &Store{
		dir:      dir,
		logger:   slog.Default(),
		entities: make(map[string]*entityState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases store resources. The file store holds no open handles
// between operations, so Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Append stamps consecutive sequence numbers and writes all events as a
// single buffered write followed by fsync, so a multi-event append reaches
// disk together. A torn tail line from a mid-write crash is skipped on the
// next load.
func (s *Store) Append(ctx context.Context, entityID string, events ...ledger.Event) ([]ledger.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	es := s.entity(entityID)
	es.mu.Lock()
	defer es.mu.Unlock()

	if err := s.ensureLoaded(entityID, es); err != nil {
		return nil, err
	}

	stamped := make([]ledger.Event, len(events))
	var buf bytes.Buffer
	seq := es.headSeq
	for i, ev := range events {
		seq++
		ev.EntityID = entityID
		ev.Seq = seq
		line, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal event %s: %w", ev.Type, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		stamped[i] = ev
	}

	f, err := os.OpenFile(s.eventsPath(entityID), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open event history: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("append events: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("sync event history: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close event history: %w", err)
	}

	es.headSeq = seq
	for _, ev := range stamped {
		if key := ev.IdempotencyKey(); key != "" {
			es.keys[key] = struct{}{}
		}
	}
	return stamped, nil
}

// Events returns the entity's full event history in sequence order.
// Undecodable lines are skipped and logged, not fatal.
func (s *Store) Events(ctx context.Context, entityID string) ([]ledger.Event, error) {
	es := s.entity(entityID)
	es.mu.Lock()
	defer es.mu.Unlock()

	events, _, err := s.readEvents(entityID)
	return events, err
}

// EventsByType returns the entity's events of one type in sequence order.
func (s *Store) EventsByType(ctx context.Context, entityID string, t ledger.Type) ([]ledger.Event, error) {
	all, err := s.Events(ctx, entityID)
	if err != nil {
		return nil, err
	}
	filtered := make([]ledger.Event, 0, len(all))
	for _, ev := range all {
		if ev.Type == t {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}

// HeadSeq returns the highest assigned sequence for the entity.
func (s *Store) HeadSeq(ctx context.Context, entityID string) (uint64, error) {
	es := s.entity(entityID)
	es.mu.Lock()
	defer es.mu.Unlock()

	if err := s.ensureLoaded(entityID, es); err != nil {
		return 0, err
	}
	return es.headSeq, nil
}

// HasIdempotencyKey reports whether a contribution with the key is recorded.
func (s *Store) HasIdempotencyKey(ctx context.Context, entityID, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	es := s.entity(entityID)
	es.mu.Lock()
	defer es.mu.Unlock()

	if err := s.ensureLoaded(entityID, es); err != nil {
		return false, err
	}
	_, ok := es.keys[key]
	return ok, nil
}

// LoadSnapshot reads the entity's current snapshot. A corrupt snapshot file
// is reported as missing (and logged) so the caller rebuilds from the log,
// which is authoritative.
func (s *Store) LoadSnapshot(ctx context.Context, entityID string) (ledger.Snapshot, bool, error) {
	data, err := os.ReadFile(s.snapshotPath(entityID))
	if err != nil {
		if os.IsNotExist(err) {
			return ledger.Snapshot{}, false, nil
		}
		return ledger.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("snapshot file corrupt, will rebuild from event history",
			"entity_id", entityID, "error", err)
		return ledger.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// SaveSnapshot writes the snapshot with a write-temp-then-rename pattern so
// the replacement is atomic.
func (s *Store) SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := s.snapshotPath(snap.EntityID)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}

	f, err := os.Open(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("open snapshot temp file for sync: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync snapshot temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Reset removes the entity's event history and snapshot together. The event
// history goes first: a crash in between leaves a snapshot without a log,
// which the staleness check repairs to the empty state on the next read.
func (s *Store) Reset(ctx context.Context, entityID string) error {
	es := s.entity(entityID)
	es.mu.Lock()
	defer es.mu.Unlock()

	if err := os.Remove(s.eventsPath(entityID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove event history: %w", err)
	}
	if err := os.Remove(s.snapshotPath(entityID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}

	es.loaded = true
	es.headSeq = 0
	es.keys = make(map[string]struct{})
	return nil
}

// entity returns the in-memory state for an entity, creating it if needed.
func (s *Store) entity(entityID string) *entityState {
	s.mu.Lock()
	defer s.mu.Unlock()

	es, ok := s.entities[entityID]
	if !ok {
		es = &entityState{keys: make(map[string]struct{})}
		s.entities[entityID] = es
	}
	return es
}

// ensureLoaded rebuilds the in-memory index from the event history file.
// Caller must hold es.mu.
func (s *Store) ensureLoaded(entityID string, es *entityState) error {
	if es.loaded {
		return nil
	}

	events, _, err := s.readEvents(entityID)
	if err != nil {
		return err
	}

	es.headSeq = 0
	es.keys = make(map[string]struct{})
	for _, ev := range events {
		if ev.Seq > es.headSeq {
			es.headSeq = ev.Seq
		}
		if key := ev.IdempotencyKey(); key != "" {
			es.keys[key] = struct{}{}
		}
	}
	es.loaded = true
	return nil
}

// readEvents parses the entity's JSONL history. Returns the decoded events
// and the number of skipped lines.
func (s *Store) readEvents(entityID string) ([]ledger.Event, int, error) {
	data, err := os.ReadFile(s.eventsPath(entityID))
	if err != nil {
		if os.IsNotExist(err) {
			return []ledger.Event{}, 0, nil
		}
		return nil, 0, fmt.Errorf("read event history: %w", err)
	}

	var events []ledger.Event
	skipped := 0
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev ledger.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			skipped++
			s.logger.Warn("skipping undecodable event history line",
				"entity_id", entityID, "line", i+1, "error", err)
			continue
		}
		events = append(events, ev)
	}
	if events == nil {
		events = []ledger.Event{}
	}
	return events, skipped, nil
}

func (s *Store) eventsPath(entityID string) string {
	return filepath.Join(s.dir, entityID+eventsSuffix)
}

func (s *Store) snapshotPath(entityID string) string {
	return filepath.Join(s.dir, entityID+snapshotSuffix)
}
