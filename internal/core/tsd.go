package core

import "time"

// Setter emits live attribute patches for a single (value, times)
// pair. Non-TSD setters implement this same shape but are invoked
// directly by decoders, bypassing all timestamp reconstruction and
// gates (§4.5 "Non-TSD setters").
type Setter func(value any, times Times) []Patch

// Transform is an arbitrary pure function applied to a sample's raw
// values before it reaches a Setter. The zero value (nil) behaves as
// identity.
type Transform func(values any) any

// TSDProcessFunc is the callable returned by TSDProcessor.New: process
// one TSD payload, in the context of the times record it arrived
// with, and return every live-attribute patch it produced.
type TSDProcessFunc func(now time.Time, payload TSDPayload, times Times) []Patch

// TSDProcessor is the per-call engine of §4.5: it decodes the
// timestamp encoding, reconstructs each sample's measurement time,
// applies the validity gates, and fans out to live-attribute emission
// and the chunk buffer.
type TSDProcessor struct {
	clock   *ClockSync
	latest  *LatestRegistry
	buffer  *ChunkBuffer
	onSkip  func(reason string, id CompoundID, measTime int64)
}

// NewTSDProcessorFactory builds the shared dependencies a set of TSD
// processor instances are built from. One factory is owned by Core
// and handed to every decoder at registration time.
func NewTSDProcessorFactory(clock *ClockSync, latest *LatestRegistry, buffer *ChunkBuffer, onSkip func(reason string, id CompoundID, measTime int64)) *TSDProcessor {
	return &TSDProcessor{clock: clock, latest: latest, buffer: buffer, onSkip: onSkip}
}

// New returns a process closure for one (setter, compoundId,
// buffering, transform) combination, per §4.5's `makeProcessor`
// factory. `transform` may be nil, meaning identity.
func (f *TSDProcessor) New(setter Setter, id CompoundID, buffering bool, transform Transform) TSDProcessFunc {
	if transform == nil {
		transform = func(v any) any { return v }
	}

	return func(now time.Time, payload TSDPayload, times Times) []Patch {
		var out []Patch

		timestampExists := payload.Timestamp != nil
		measTimeExists := times.HasMeasurement()

		var kind TSDKind
		var mult int64
		var firstTsPicosec int64
		var measTimePicosec int64

		if timestampExists {
			kind = payload.Timestamp.Kind
			mult = unitMultiplier(payload.Timestamp.Unit)
		}

		if measTimeExists {
			measTimePicosec = *times.Measurement * TTickPicoseconds
		}

		// Precompute the relative-timestamp anchor: the last sample's
		// relative timestamp is treated as equal to the inbound
		// measurement time (§4.5 step 3). The source has a FIXME
		// suggesting max(...) instead of last; that change is
		// explicitly not made here (§9 open question).
		if timestampExists && measTimeExists && kind == TSDRelative && len(payload.Data) > 0 {
			last := payload.Data[len(payload.Data)-1]
			firstTsPicosec = measTimePicosec - mult*int64(last.Timestamp)
		}

		for _, sample := range payload.Data {
			newTimes := times.Clone()
			gotNewMeasTime := false

			if timestampExists {
				switch kind {
				case TSDRelative:
					if measTimeExists {
						m := (firstTsPicosec + mult*int64(sample.Timestamp)) / TTickPicoseconds
						newTimes.Measurement = &m
						gotNewMeasTime = true
					}
				case TSDRelativeReversed:
					if measTimeExists {
						m := (measTimePicosec - mult*int64(sample.Timestamp)) / TTickPicoseconds
						newTimes.Measurement = &m
						gotNewMeasTime = true
					}
				case TSDAbsolute:
					m := (mult * int64(sample.Timestamp)) / TTickPicoseconds
					newTimes.Measurement = &m
					gotNewMeasTime = true
				}
			}

			if !measTimeExists && !gotNewMeasTime {
				continue
			}

			newMeasTime := *newTimes.Measurement

			if !f.clock.NotTooNew(now, newMeasTime) {
				if f.onSkip != nil {
					f.onSkip("too-new", id, newMeasTime)
				}
				continue
			}

			v := transform(sample.Values)

			if f.latest.CheckAndUpdate(id, newMeasTime) {
				out = append(out, setter(v, newTimes)...)
			}

			if buffering {
				f.buffer.Add(now, id, v, newTimes)
			}
		}

		return out
	}
}
