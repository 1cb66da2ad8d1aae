package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/waypost/internal/ledger"
	"github.com/waypost/waypost/internal/store"
	"github.com/waypost/waypost/internal/store/storetest"
)

// TestConformance runs the shared store contract suite.
func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

// TestOpen_CreatesDirectory tests that Open creates missing directories.
func TestOpen_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// TestAppend_SurvivesReopen tests that the in-memory index rebuilds from the
// JSONL file after a fresh Open (simulated process restart).
func TestAppend_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)

	ev, err := ledger.NewEvent("pet-1", ledger.TypeContributionAdded, time.Now().UTC(),
		ledger.ContributionPayload{AmountCents: 100, IdempotencyKey: "k-1"})
	require.NoError(t, err)
	_, err = s.Append(ctx, "pet-1", ev)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	head, err := reopened.HeadSeq(ctx, "pet-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head)

	has, err := reopened.HasIdempotencyKey(ctx, "pet-1", "k-1")
	require.NoError(t, err)
	assert.True(t, has)

	stamped, err := reopened.Append(ctx, "pet-1", ev)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stamped[0].Seq)
}

// TestEvents_SkipsTornTailLine tests crash tolerance: a partial final line
// (torn write) is skipped without failing the read.
func TestEvents_SkipsTornTailLine(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ev, err := ledger.NewEvent("pet-1", ledger.TypeContributionAdded, time.Now().UTC(),
		ledger.ContributionPayload{AmountCents: 100, IdempotencyKey: "k-1"})
	require.NoError(t, err)
	_, err = s.Append(ctx, "pet-1", ev)
	require.NoError(t, err)

	// Simulate a crash mid-append: a truncated JSON line at the tail.
	f, err := os.OpenFile(filepath.Join(dir, "pet-1.events.jsonl"), os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"entity_id":"pet-1","seq":2,"ty`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := s.Events(ctx, "pet-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Seq)
}

// TestLoadSnapshot_CorruptFile tests that a corrupt snapshot reads as
// missing so the caller rebuilds from the authoritative log.
func TestLoadSnapshot_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pet-1.snapshot.json"), []byte("{oops"), 0o600))

	_, found, err := s.LoadSnapshot(ctx, "pet-1")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestSaveSnapshot_LeavesNoTempFile tests that the temp file is consumed by
// the atomic rename.
func TestSaveSnapshot_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveSnapshot(ctx, ledger.Snapshot{EntityID: "pet-1", Level: 1}))

	_, err = os.Stat(filepath.Join(dir, "pet-1.snapshot.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "pet-1.snapshot.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}
