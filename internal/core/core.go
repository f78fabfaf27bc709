package core

import (
	"sync"
	"time"
)

// Dispatcher is the translator-registry contract Core needs: given an
// inbound data map, device id and times record, produce every patch
// the registered decoders emit (§4.7). internal/translate.Registry
// implements this.
type Dispatcher interface {
	Dispatch(now time.Time, data map[string]any, device int64, times Times) []Patch
}

// Core owns every piece of mutable state described in §5: the clock
// sync anchor, the latest-time registry, the dedup window, the chunk
// buffer and the tick interpolator. Process and SweepDedupNow both
// hold Core.mu, so the scheduled dedup sweep, and any wiring with more
// than one producer goroutine, is serialized with message processing,
// per §5's guidance for non-single-threaded hosts.
type Core struct {
	mu sync.Mutex

	Clock      *ClockSync
	Latest     *LatestRegistry
	Dedup      *DedupWindow
	Buffer     *ChunkBuffer
	TickInterp *TickInterpolator
	TSD        *TSDProcessor

	registryFor func(device int64) Dispatcher

	lastDedupSweep time.Time

	onSkipTooNew func(id CompoundID, measTime int64)
}

// Option configures a Core at construction time.
type Option func(*Core)

// WithSkipLogger registers a callback invoked whenever the TSD
// processor rejects a sample for being too new (§7 item 3).
func WithSkipLogger(f func(id CompoundID, measTime int64)) Option {
	return func(c *Core) { c.onSkipTooNew = f }
}

// NewCore wires together a fresh instance of every stateful component
// described in §5: clock sync, latest-time registry, dedup window,
// chunk buffer, tick interpolator and TSD processor factory. The
// registry resolver that feeds Process must be installed afterwards
// with SetRegistryResolver, since it is typically built from this
// Core's own TSD/TickInterp (a registry's decoders own TSD Processor
// instances bound to one compound id each). All mutable state lives on
// this struct rather than as process globals, so tests can construct
// a fresh Core per case.
func NewCore(opts ...Option) *Core {
	c := &Core{}
	for _, opt := range opts {
		opt(c)
	}

	c.Clock = &ClockSync{}
	c.Latest = NewLatestRegistry()
	c.Dedup = NewDedupWindow()
	c.Buffer = NewChunkBuffer(c.Dedup, c.Clock)
	c.TickInterp = NewTickInterpolator()
	c.TSD = NewTSDProcessorFactory(c.Clock, c.Latest, c.Buffer, func(reason string, id CompoundID, measTime int64) {
		if reason == "too-new" && c.onSkipTooNew != nil {
			c.onSkipTooNew(id, measTime)
		}
	})

	return c
}

// SetRegistryResolver installs the per-device translator registry
// resolver. Must be called before the first Process call.
func (c *Core) SetRegistryResolver(registryFor func(device int64) Dispatcher) {
	c.registryFor = registryFor
}

// Process runs one inbound message through the full data flow of §2:
// advance the clock sync, dispatch to the translator registry,
// sweep the dedup window if due, and evaluate the chunk buffer's
// close policy. It returns the live-attribute patches to enqueue and
// any chunks that closed as a result of this call.
func (c *Core) Process(now time.Time, device int64, data map[string]any, times Times) ([]Patch, []FieldChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Clock.Sync(now, times)

	patches := c.registryFor(device).Dispatch(now, data, device, times)

	c.maybeSweepDedup(now)

	flushed := c.Buffer.MaybeFlush(now)

	return patches, flushed
}

func (c *Core) maybeSweepDedup(now time.Time) {
	if c.lastDedupSweep.IsZero() {
		c.lastDedupSweep = now
		return
	}
	if now.Sub(c.lastDedupSweep) < DedupCleanupInterval {
		return
	}
	c.Dedup.Sweep(c.Clock, now)
	c.lastDedupSweep = now
}

// SweepDedupNow forces an immediate dedup sweep regardless of the
// cleanup interval elapsed. Exposed for the scheduled background
// maintenance job as a belt-and-braces call in addition to the
// per-message check above.
func (c *Core) SweepDedupNow(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.Dedup.Sweep(c.Clock, now)
	c.lastDedupSweep = now
	return n
}
