package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncedBuffer(anchor int64, now time.Time) (*ClockSync, *ChunkBuffer) {
	clock := &ClockSync{}
	clock.Sync(now, Times{Measurement: Int64Ptr(anchor)})
	return clock, NewChunkBuffer(NewDedupWindow(), clock)
}

// P4: a buffer younger than CloseTimeoutNormal never flushes, no
// matter how many records it holds.
func TestChunkBufferWontFlushBeforeTimeout(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, buffer := newSyncedBuffer(1, now)

	id := CompoundID{Device: 1, Field: "x"}
	for i := int64(0); i < 20; i++ {
		buffer.Add(now, id, i, Times{Measurement: Int64Ptr(100 + i)})
	}

	flushed := buffer.MaybeFlush(now.Add(30 * time.Second))
	assert.Nil(t, flushed)
	assert.Equal(t, 20, buffer.Len())
}

// P4: once older than CloseTimeoutNormal, a buffer with at least
// ChunkSizeMin records flushes.
func TestChunkBufferFlushesOnCountAfterTimeout(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, buffer := newSyncedBuffer(1, now)

	id := CompoundID{Device: 1, Field: "x"}
	for i := int64(0); i < ChunkSizeMin; i++ {
		buffer.Add(now, id, i, Times{Measurement: Int64Ptr(100 + i)})
	}

	flushed := buffer.MaybeFlush(now.Add(CloseTimeoutNormal + time.Second))
	require.NotNil(t, flushed)
	assert.Equal(t, 0, buffer.Len())
}

// P4: a buffer with fewer than ChunkSizeMin records waits until
// CloseHardLimit regardless of count.
func TestChunkBufferWaitsUntilHardLimitForFewRecords(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, buffer := newSyncedBuffer(1, now)

	id := CompoundID{Device: 1, Field: "x"}
	buffer.Add(now, id, 1, Times{Measurement: Int64Ptr(100)})

	notYet := buffer.MaybeFlush(now.Add(CloseTimeoutNormal + time.Second))
	assert.Nil(t, notYet, "below ChunkSizeMin and below CloseHardLimit: must wait")

	flushed := buffer.MaybeFlush(now.Add(CloseHardLimit + time.Second))
	require.NotNil(t, flushed)
	require.Len(t, flushed, 1)
	assert.Len(t, flushed[0].Devices[0].Entries, 1)
}

// P5: a flush groups records by field first, then by device, each
// preserving first-seen order.
func TestChunkBufferGroupsByFieldThenDevice(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, buffer := newSyncedBuffer(1, now)

	fieldA := CompoundID{Device: 1, Field: "a"}
	fieldB := CompoundID{Device: 2, Field: "b"}
	fieldA2 := CompoundID{Device: 2, Field: "a"}

	buffer.Add(now, fieldA, "a1", Times{Measurement: Int64Ptr(100)})
	buffer.Add(now, fieldB, "b1", Times{Measurement: Int64Ptr(101)})
	buffer.Add(now, fieldA2, "a2", Times{Measurement: Int64Ptr(102)})
	buffer.Add(now, fieldA, "a1b", Times{Measurement: Int64Ptr(103)})

	for i := int64(0); i < ChunkSizeMin; i++ {
		buffer.Add(now, CompoundID{Device: 3, Field: "filler"}, i, Times{Measurement: Int64Ptr(200 + i)})
	}

	flushed := buffer.MaybeFlush(now.Add(CloseTimeoutNormal + time.Second))
	require.NotNil(t, flushed)

	require.Equal(t, "a", flushed[0].Field)
	require.Len(t, flushed[0].Devices, 2)
	assert.Equal(t, int64(1), flushed[0].Devices[0].Device)
	assert.Len(t, flushed[0].Devices[0].Entries, 2)
	assert.Equal(t, "a1", flushed[0].Devices[0].Entries[0].Value)
	assert.Equal(t, "a1b", flushed[0].Devices[0].Entries[1].Value)
	assert.Equal(t, int64(2), flushed[0].Devices[1].Device)

	require.Equal(t, "b", flushed[1].Field)
	require.Equal(t, "filler", flushed[2].Field)
}
