package core

import "time"

// secondsPerTTick converts a T-tick count into seconds.
const secondsPerTTick = 1.0 / 1_000_000.0 // 1 T-tick = 1e-6 s

// ClockSync maintains a single (local time, measurementTime) anchor
// used to map measurement times into monotonic local time for age
// checks.
//
// now is injected rather than read from time.Now() directly so tests
// can drive the clock deterministically; production wiring always
// passes time.Now().
type ClockSync struct {
	anchorLocal       time.Time
	anchorMeasurement int64
}

// Sync overwrites the anchor if times carries a non-zero measurement
// time; an absent or zero measurement leaves the anchor unchanged.
// Called on every inbound record, per §4.1.
func (c *ClockSync) Sync(now time.Time, times Times) {
	if times.Measurement == nil || *times.Measurement == 0 {
		return
	}
	c.anchorLocal = now
	c.anchorMeasurement = *times.Measurement
}

// MeasurementToLocal maps a T-tick measurement time to local wall
// clock time using the current anchor.
func (c *ClockSync) MeasurementToLocal(m int64) time.Time {
	deltaTicks := c.anchorMeasurement - m
	deltaSeconds := float64(deltaTicks) * secondsPerTTick
	return c.anchorLocal.Add(-time.Duration(deltaSeconds * float64(time.Second)))
}

// NotTooOld reports whether m maps to a local time within AgeLimit
// seconds of now.
func (c *ClockSync) NotTooOld(now time.Time, m int64) bool {
	local := c.MeasurementToLocal(m)
	return local.Add(AgeLimit * time.Second).After(now) || local.Add(AgeLimit*time.Second).Equal(now)
}

// NotTooNew reports whether m maps to a local time strictly less than
// TooNewTolerance seconds in the future of now.
func (c *ClockSync) NotTooNew(now time.Time, m int64) bool {
	local := c.MeasurementToLocal(m)
	return local.Before(now.Add(TooNewTolerance * time.Second))
}
