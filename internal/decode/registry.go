// Package decode wires together one translate.Registry per device,
// composed of the per-domain decoders in its subpackages, in the
// declaration order the LoLaN key catalogue (§6) lists them.
package decode

import (
	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/decode/ble"
	"github.com/indoorassets/telemetry-translator/internal/decode/generaltags"
	"github.com/indoorassets/telemetry-translator/internal/decode/locations"
	"github.com/indoorassets/telemetry-translator/internal/decode/pairings"
	"github.com/indoorassets/telemetry-translator/internal/decode/twr"
	"github.com/indoorassets/telemetry-translator/internal/translate"
)

// Factory lazily builds one translate.Registry per device the first
// time a message for it arrives, since the TSD Processor instances a
// decoder owns are bound to one compound id at construction (§4.5).
type Factory struct {
	tsd   *core.TSDProcessor
	tick  *core.TickInterpolator
	rtls  *ble.RangeResolver
	cache map[int64]*translate.Registry
}

// NewFactory builds a registry factory sharing the given Core's TSD
// processor and tick interpolator, and the given BLE-RTLS range
// resolver (may be nil to disable BLE positioning).
func NewFactory(tsd *core.TSDProcessor, tick *core.TickInterpolator, rtls *ble.RangeResolver) *Factory {
	return &Factory{tsd: tsd, tick: tick, rtls: rtls, cache: make(map[int64]*translate.Registry)}
}

// For returns the core.Dispatcher (a translate.Registry) for device,
// building it on first use. Matches the func(int64) core.Dispatcher
// shape core.NewCore expects as its registry resolver.
func (f *Factory) For(device int64) core.Dispatcher {
	if r, ok := f.cache[device]; ok {
		return r
	}

	r := translate.NewRegistry()
	r.Register(generaltags.New(f.tsd, device))
	r.Register(locations.New(f.tsd, device))
	r.Register(pairings.New(f.tsd, f.tick, f.rtls, device))
	r.Register(twr.New(device))

	f.cache[device] = r
	return r
}
