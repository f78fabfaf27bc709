// Package bus subscribes to the inbound NATS subjects carrying BDCL
// and SCL messages and drives the core/translator pipeline from them.
package bus

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/pkg/log"
	"github.com/nats-io/nats.go"
)

// Processor is the core/translator pipeline entry point a decoded
// BDCL message is handed to. internal/core.Core.Process, composed
// with a per-device translate.Registry, implements this.
type Processor func(now time.Time, device int64, data map[string]any, times core.Times) ([]core.Patch, []core.FieldChunk)

// Sink receives the results of processing one inbound message:
// patches destined for the outbound websocket sinks, and any chunks
// the buffer closed as a side effect.
type Sink interface {
	AcceptPatches(patches []core.Patch)
	AcceptHistory(chunks []core.FieldChunk)
}

// Bus owns the NATS connection and the two inbound subscriptions.
type Bus struct {
	nc   *nats.Conn
	subs []*nats.Subscription

	process Processor
	sink    Sink
}

// Connect dials addr with opts and returns a Bus ready to Subscribe.
func Connect(addr string, process Processor, sink Sink, opts ...nats.Option) (*Bus, error) {
	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("[BUS] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("[BUS] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Errorf("[BUS] error: %v", err)
		}),
	)

	nc, err := nats.Connect(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus: connect to %s: %w", addr, err)
	}
	log.Infof("[BUS] connected to %s", addr)

	return &Bus{nc: nc, process: process, sink: sink}, nil
}

// Subscribe subscribes to the BDCL and SCL subjects.
func (b *Bus) Subscribe(bdclSubject, sclSubject string) error {
	sub, err := b.nc.Subscribe(bdclSubject, b.handleBDCL)
	if err != nil {
		return fmt.Errorf("bus: subscribe %s: %w", bdclSubject, err)
	}
	b.subs = append(b.subs, sub)

	sub, err = b.nc.Subscribe(sclSubject, b.handleSCL)
	if err != nil {
		return fmt.Errorf("bus: subscribe %s: %w", sclSubject, err)
	}
	b.subs = append(b.subs, sub)

	log.Infof("[BUS] subscribed to %s, %s", bdclSubject, sclSubject)
	return nil
}

// Connection returns the underlying NATS connection, e.g. for the
// history sink to publish flushed chunks on the same connection.
func (b *Bus) Connection() *nats.Conn {
	return b.nc
}

// Close unsubscribes and closes the NATS connection.
func (b *Bus) Close() {
	for _, s := range b.subs {
		_ = s.Unsubscribe()
	}
	b.nc.Close()
}

type bdclHeader struct {
	UniqID   *int64 `json:"uniqId"`
	MeasTs   *int64 `json:"measTs"`
	ServerTs *int64 `json:"serverTs"`
}

type bdclMessage struct {
	Header bdclHeader     `json:"header"`
	Data   map[string]any `json:"data"`
}

// handleBDCL implements §6's BDCL message rules: drop on malformed
// JSON or a missing data/uniqId; fall back measTs -> serverTs with a
// DEBUG log; if both are absent, log WARNING and still invoke the
// translators with no measurement time.
func (b *Bus) handleBDCL(msg *nats.Msg) {
	var m bdclMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Warnf("[BUS] malformed BDCL message: %v", err)
		return
	}

	if m.Data == nil || m.Header.UniqID == nil {
		log.Warnf("[BUS] BDCL message missing data or uniqId, dropped")
		return
	}

	times := core.Times{}
	switch {
	case m.Header.MeasTs != nil:
		times.Measurement = m.Header.MeasTs
	case m.Header.ServerTs != nil:
		log.Debugf("[BUS] device %d: measTs absent, using serverTs", *m.Header.UniqID)
		times.Measurement = m.Header.ServerTs
	default:
		log.Warnf("[BUS] device %d: both measTs and serverTs absent", *m.Header.UniqID)
	}

	now := time.Now()
	patches, chunks := b.process(now, *m.Header.UniqID, m.Data, times)

	if len(patches) > 0 {
		b.sink.AcceptPatches(patches)
	}
	if len(chunks) > 0 {
		b.sink.AcceptHistory(chunks)
	}
}

type sclPosition struct {
	PositionVector [3]float64 `json:"positionVector"`
}

type sclMessage struct {
	DevID               int64         `json:"devId"`
	UUID                string        `json:"uuid"`
	Timestamp           int64         `json:"timestamp"`
	SensorSetBufferTime int64         `json:"sensorsetbufferTime"`
	Positions           []sclPosition `json:"positions"`
}

const sclCollection = "sclpositions"

// handleSCL implements §6's SCL message rule: emit one patch to
// sclpositions/sclProfiles/<uuid>/rawPositions, defaulting positions
// to [[0,0,0]] when the source sent null. SCL patches bypass the TSD
// processor entirely (they carry no TSD array), the same as any other
// non-TSD setter (§4.5). The id is the stringified device key
// (devId), the same convention every other collection uses; uuid only
// selects the attribute path.
func (b *Bus) handleSCL(msg *nats.Msg) {
	var m sclMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Warnf("[BUS] malformed SCL message: %v", err)
		return
	}

	vectors := make([][3]float64, 0, len(m.Positions))
	for _, p := range m.Positions {
		vectors = append(vectors, p.PositionVector)
	}
	if len(vectors) == 0 {
		vectors = [][3]float64{{0, 0, 0}}
	}

	times := core.Times{
		Measurement:     core.Int64Ptr(m.Timestamp),
		SensorSetBuffer: core.Int64Ptr(m.SensorSetBufferTime),
	}

	patch := core.Patch{
		Coll:  sclCollection,
		ID:    "tag." + strconv.FormatInt(m.DevID, 10),
		Attr:  "sclProfiles/" + m.UUID + "/rawPositions",
		Value: vectors,
		Times: times,
	}

	b.sink.AcceptPatches([]core.Patch{patch})
}
