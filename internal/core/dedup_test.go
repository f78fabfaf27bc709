package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupWindowTryInsert(t *testing.T) {
	d := NewDedupWindow()
	id := CompoundID{Device: 1, Field: "x"}

	assert.True(t, d.TryInsert(id, 100))
	assert.False(t, d.TryInsert(id, 100))
	assert.True(t, d.TryInsert(id, 101))
	assert.Equal(t, 2, d.Len())
}

// Sweep evicts only entries that have aged out of the clock's
// too-old window, leaving recent entries tracked.
func TestDedupWindowSweep(t *testing.T) {
	clock := &ClockSync{}
	now := time.Unix(1_700_000_000, 0)
	clock.Sync(now, Times{Measurement: Int64Ptr(10_000_000)})

	d := NewDedupWindow()
	id := CompoundID{Device: 1, Field: "x"}
	d.TryInsert(id, 10_000_000)  // maps to now
	d.TryInsert(id, -3_500_000_000_000) // ~ AgeLimit seconds + a lot in the past

	removed := d.Sweep(clock, now)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, d.Len())
}
