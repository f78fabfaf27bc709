package core

import "time"

// ChunkSizeMin is the minimum record count that, combined with
// CloseTimeoutNormal, triggers an early flush (§4.4).
const ChunkSizeMin = 10

// CloseTimeoutNormal is the minimum window age before a flush can
// happen at all.
const CloseTimeoutNormal = 60 * time.Second

// CloseHardLimit is the window age at which a flush happens
// regardless of record count.
const CloseHardLimit = 600 * time.Second

type chunkRecord struct {
	Device int64
	Field  string
	Values any
	Times  Times
}

// ChunkBuffer accumulates accepted TSD samples and flushes them by a
// size-or-age policy, grouping by field then device on flush. It is
// not safe for concurrent use; callers serialize access the same way
// they serialize the rest of Core.
type ChunkBuffer struct {
	records     []chunkRecord
	windowStart time.Time
	hasWindow   bool
	dedup       *DedupWindow
	clock       *ClockSync
}

// NewChunkBuffer returns an empty chunk buffer backed by the given
// dedup window and clock sync (both owned by the enclosing Core).
func NewChunkBuffer(dedup *DedupWindow, clock *ClockSync) *ChunkBuffer {
	return &ChunkBuffer{dedup: dedup, clock: clock}
}

// Add admits a sample to the buffer, discarding it if it is too old
// or a duplicate of an already-buffered (compoundId, measurementTime)
// pair (§3 invariant 3). Admission to the chunk buffer is
// unconditional with respect to the Latest-Time Registry: a
// non-monotonic sample may still be buffered for history even though
// it will never be emitted live (§9 "non-monotonic samples").
func (b *ChunkBuffer) Add(now time.Time, id CompoundID, values any, times Times) {
	measTime := times.MeasurementOr(0)
	if !b.clock.NotTooOld(now, measTime) {
		return
	}
	if !b.dedup.TryInsert(id, measTime) {
		return
	}
	if len(b.records) == 0 {
		b.windowStart = now
		b.hasWindow = true
	}
	b.records = append(b.records, chunkRecord{
		Device: id.Device,
		Field:  id.Field,
		Values: values,
		Times:  times.Clone(),
	})
}

// shouldTrigger reports whether the close-timeout condition of §4.4
// holds: non-empty and at least CloseTimeoutNormal old.
func (b *ChunkBuffer) shouldTrigger(now time.Time) bool {
	return len(b.records) > 0 && b.hasWindow && now.Sub(b.windowStart) >= CloseTimeoutNormal
}

// shouldEmit reports whether the emission condition of §4.4 holds:
// enough records, or the hard age limit has been reached.
func (b *ChunkBuffer) shouldEmit(now time.Time) bool {
	return len(b.records) >= ChunkSizeMin || now.Sub(b.windowStart) >= CloseHardLimit
}

// MaybeFlush evaluates the trigger/emit conditions and, if both hold,
// groups the buffered records by field then device (preserving
// insertion order within each group, per §3 invariant 4) and returns
// one FieldChunk per field, clearing the buffer. If the trigger
// condition holds but the emit condition does not, it returns nil and
// leaves the buffer untouched (the "wait" case of §4.4). Called on
// every inbound message.
func (b *ChunkBuffer) MaybeFlush(now time.Time) []FieldChunk {
	if !b.shouldTrigger(now) || !b.shouldEmit(now) {
		return nil
	}

	fieldIdx := make(map[string]int)
	chunks := make([]FieldChunk, 0)
	deviceIdx := make(map[string]map[int64]int)

	for _, rec := range b.records {
		fi, ok := fieldIdx[rec.Field]
		if !ok {
			fi = len(chunks)
			fieldIdx[rec.Field] = fi
			chunks = append(chunks, FieldChunk{Field: rec.Field})
			deviceIdx[rec.Field] = make(map[int64]int)
		}

		entry := ChunkEntry{
			DCMTime:             rec.Times.MeasurementOr(0),
			MeasurementTime:     rec.Times.MeasurementOr(0),
			SensorSetBufferTime: rec.Times.SensorSetBuffer,
			Value:               rec.Values,
		}

		if di, ok := deviceIdx[rec.Field][rec.Device]; ok {
			chunks[fi].Devices[di].Entries = append(chunks[fi].Devices[di].Entries, entry)
			continue
		}

		deviceIdx[rec.Field][rec.Device] = len(chunks[fi].Devices)
		chunks[fi].Devices = append(chunks[fi].Devices, DeviceChunk{
			Device:  rec.Device,
			Entries: []ChunkEntry{entry},
		})
	}

	b.records = nil
	b.hasWindow = false
	return chunks
}

// Len reports the number of currently buffered records. Used for
// metrics/debug.
func (b *ChunkBuffer) Len() int {
	return len(b.records)
}
