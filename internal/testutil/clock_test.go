package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_AdvancesByStep(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := NewDeterministicClock(base, time.Second)

	assert.Equal(t, base.Add(time.Second), clock.Now())
	assert.Equal(t, base.Add(2*time.Second), clock.Now())
	assert.Equal(t, base.Add(2*time.Second), clock.Current())
}

func TestDeterministicClock_Reset(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := NewDeterministicClock(base, time.Second)

	clock.Now()
	clock.Now()
	clock.Reset()

	assert.Equal(t, base.Add(time.Second), clock.Now())
}
