// Package testutil provides deterministic time sources for tests.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe logical wall clock for tests.
//
// Every call to Now advances time by a fixed step, so event timestamps are
// reproducible across runs. Reset enables the same scenario to run multiple
// times with identical timestamps.
type DeterministicClock struct {
	mu    sync.Mutex
	base  time.Time
	step  time.Duration
	ticks int
}

// NewDeterministicClock creates a clock starting at base that advances by
// step on every Now call. The first Now returns base+step.
func NewDeterministicClock(base time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{base: base, step: step}
}

// Now returns the next timestamp.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.base.Add(time.Duration(c.ticks) * c.step)
}

// Current returns the last timestamp handed out without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(time.Duration(c.ticks) * c.step)
}

// Reset rewinds the clock to its base time.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
