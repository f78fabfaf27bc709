// Package sink implements outbound websocket patch delivery: one
// persistent connection per DCM collection, a bounded FIFO queue per
// connection, and an indefinite 1 s-cadence reconnect task on send or
// connect failure.
package sink

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/metrics"
	"github.com/indoorassets/telemetry-translator/pkg/log"
)

// Collections is the fixed set of DCM collections §6 recognizes as
// outbound websocket targets.
var Collections = []string{"generalTags", "locations", "pairings", "extras", "twr", "sclpositions"}

// patchEnvelope is the single-element JSON array wire shape §6
// specifies for one outbound patch.
type patchEnvelope struct {
	Op    string    `json:"op"`
	Path  string    `json:"path"`
	Value any       `json:"value"`
	Times core.Times `json:"times"`
}

// Pool owns one connection (and its queue/reconnect task) per
// recognized collection.
type Pool struct {
	baseURL    string
	queueLimit int
	retryEvery time.Duration

	mu    sync.Mutex
	conns map[string]*connection
}

// NewPool builds a pool for baseURL (e.g. "ws://dcm/v2"), not yet
// connected; call Start to connect every recognized collection.
func NewPool(baseURL string, queueLimit int, retryEvery time.Duration) *Pool {
	return &Pool{
		baseURL:    baseURL,
		queueLimit: queueLimit,
		retryEvery: retryEvery,
		conns:      make(map[string]*connection),
	}
}

// Start dials every recognized collection's websocket and starts its
// sender goroutine. Collections that fail to connect immediately are
// still registered with a reconnect task pending (§6 "connect failure
// ... retry on a 1 s cadence forever"). Start returns an error only if
// every collection failed, matching §7's "exhaustion of all sinks at
// startup" fatal condition.
func (p *Pool) Start() error {
	failures := 0
	for _, coll := range Collections {
		c := newConnection(p.baseURL, coll, p.queueLimit, p.retryEvery)
		p.mu.Lock()
		p.conns[coll] = c
		p.mu.Unlock()
		if err := c.connect(); err != nil {
			failures++
			log.Warnf("[SINK] %s: initial connect failed, scheduling reconnect: %v", coll, err)
			go c.reconnectLoop()
		} else {
			go c.sendLoop()
		}
	}
	if failures == len(Collections) {
		return fmt.Errorf("sink: all %d collections failed to connect", len(Collections))
	}
	return nil
}

// AcceptPatches implements bus.Sink: enqueues every patch on its
// target collection's connection, dropping (with a counted metric)
// patches for collections the pool does not recognize or whose queue
// is at its high-water mark.
func (p *Pool) AcceptPatches(patches []core.Patch) {
	for _, patch := range patches {
		p.mu.Lock()
		c, ok := p.conns[patch.Coll]
		p.mu.Unlock()
		if !ok {
			log.Warnf("[SINK] patch for unrecognized collection %q dropped", patch.Coll)
			continue
		}
		metrics.PatchesEmitted.WithLabelValues(patch.Coll).Inc()
		c.enqueue(patch)
	}
}

// AcceptHistory is a no-op for Pool; history chunks are routed to
// internal/history.Sink instead, not the per-collection DCM sinks.
func (p *Pool) AcceptHistory(chunks []core.FieldChunk) {}

// Close closes every connection and stops its sender/reconnect tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		c.close()
	}
}

// connection is one collection's websocket client: a dial target, a
// bounded FIFO of pending patches, and the single goroutine draining
// it. Reconnection is handled by tearing down the queue drainer and
// starting a fresh reconnect loop; the queue itself survives a
// reconnect so patches accepted during a brief outage are not lost,
// up to queueLimit.
type connection struct {
	url        string
	collection string
	queueLimit int
	retryEvery time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	queue  chan core.Patch
	closed bool
}

func newConnection(baseURL, collection string, queueLimit int, retryEvery time.Duration) *connection {
	return &connection{
		url:        fmt.Sprintf("%s/%s/patchwebsocket", baseURL, collection),
		collection: collection,
		queueLimit: queueLimit,
		retryEvery: retryEvery,
		queue:      make(chan core.Patch, queueLimit),
	}
}

func (c *connection) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	log.Infof("[SINK] %s: connected to %s", c.collection, c.url)
	return nil
}

func (c *connection) enqueue(patch core.Patch) {
	select {
	case c.queue <- patch:
		metrics.OutboundQueueDepth.WithLabelValues(c.collection).Set(float64(len(c.queue)))
	default:
		metrics.OutboundQueueDropped.WithLabelValues(c.collection).Inc()
		log.Warnf("[SINK] %s: outbound queue full (limit %d), patch dropped", c.collection, c.queueLimit)
	}
}

// sendLoop drains the queue and writes each patch as its own
// single-element JSON array (§6). On any write failure the connection
// is torn down and a reconnect task takes over; queued patches remain
// queued for the reconnected sender.
func (c *connection) sendLoop() {
	for patch := range c.queue {
		metrics.OutboundQueueDepth.WithLabelValues(c.collection).Set(float64(len(c.queue)))

		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if conn == nil {
			go c.reconnectLoop()
			return
		}

		body, err := json.Marshal([]patchEnvelope{{
			Op:    "replace",
			Path:  "/" + patch.ID + "/" + patch.Attr,
			Value: patch.Value,
			Times: patch.Times,
		}})
		if err != nil {
			log.Errorf("[SINK] %s: marshaling patch: %v", c.collection, err)
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
			log.Warnf("[SINK] %s: send failed, reconnecting: %v", c.collection, err)
			conn.Close()
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			go c.reconnectLoop()
			return
		}
	}
}

// reconnectLoop retries connect on a fixed cadence, indefinitely,
// until it succeeds or the connection is closed (§6, §7 item 6).
func (c *connection) reconnectLoop() {
	metrics.SinkReconnects.WithLabelValues(c.collection).Inc()
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		if err := c.connect(); err == nil {
			go c.sendLoop()
			return
		}

		time.Sleep(c.retryEvery)
		metrics.SinkReconnects.WithLabelValues(c.collection).Inc()
	}
}

func (c *connection) close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	close(c.queue)
}
