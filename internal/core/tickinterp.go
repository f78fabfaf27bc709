package core

// tickAnchor is one (measurement time, device tick count) pair.
type tickAnchor struct {
	MeasTime int64
	Tick     int64
}

type deviceTicks struct {
	former *tickAnchor
	last   *tickAnchor
}

// TickInterpolator reconstructs a measurement time from a device tick
// count when the BDCL did not attach one, using the two most recent
// (measTime, tick) anchors observed for that device.
type TickInterpolator struct {
	byDevice map[int64]*deviceTicks
}

// NewTickInterpolator returns an empty interpolator.
func NewTickInterpolator() *TickInterpolator {
	return &TickInterpolator{byDevice: make(map[int64]*deviceTicks)}
}

// Observe records a new anchor for device, shifting the previous
// "last" anchor into "former". Only called when an inbound message
// supplies both a tick count and a times.measurement.
func (t *TickInterpolator) Observe(device int64, measTime, tick int64) {
	dt, ok := t.byDevice[device]
	if !ok {
		dt = &deviceTicks{}
		t.byDevice[device] = dt
	}
	if dt.last != nil {
		former := *dt.last
		dt.former = &former
	}
	dt.last = &tickAnchor{MeasTime: measTime, Tick: tick}
}

// Interpolate returns the reconstructed measurement time for tick t on
// device, and whether interpolation was possible (both anchors must
// exist).
func (t *TickInterpolator) Interpolate(device int64, tick int64) (int64, bool) {
	dt, ok := t.byDevice[device]
	if !ok || dt.former == nil || dt.last == nil {
		return 0, false
	}

	tickInterval := dt.last.Tick - dt.former.Tick
	if tickInterval == 0 {
		return 0, false
	}

	measInterval := dt.last.MeasTime - dt.former.MeasTime
	unknownTicks := tick - dt.last.Tick

	offset := roundDiv(unknownTicks*measInterval, tickInterval)
	return dt.last.MeasTime + offset, true
}

// roundDiv performs a rounded integer division (round-half-away-from-
// zero). For non-tie quotients this equals Python's round(a/b); on an
// exact .5 it rounds away from zero, where Python rounds to even.
func roundDiv(num, den int64) int64 {
	if den < 0 {
		num, den = -num, -den
	}
	if num >= 0 {
		return (num + den/2) / den
	}
	return -((-num + den/2) / den)
}
