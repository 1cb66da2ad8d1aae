package engine

import (
	"context"
	"sync"
	"time"

	"github.com/waypost/waypost/internal/ledger"
)

// lockRegistry provides per-entity mutual exclusion with a bounded wait.
//
// The registry is owned by the Engine instance, not process-wide, so tests
// can run isolated engines side by side. Locks are channel-based semaphores
// of capacity one, which allows acquisition to race against a timeout and
// context cancellation.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]chan struct{})}
}

// acquire takes the entity's exclusive lock, waiting at most timeout.
// Returns a release func on success, or a LOCK_TIMEOUT error. Entries are
// never removed from the map: the set of live entities is small and stable.
func (r *lockRegistry) acquire(ctx context.Context, entityID string, timeout time.Duration) (func(), error) {
	ch := r.lock(entityID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, ledger.NewLockTimeoutError(entityID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *lockRegistry) lock(entityID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.locks[entityID]
	if !ok {
		ch = make(chan struct{}, 1)
		r.locks[entityID] = ch
	}
	return ch
}
