// Package history binds the chunk buffer's flushed output to a
// concrete long-term store: NATS publish of InfluxDB
// line-protocol-encoded points.
package history

import (
	"fmt"
	"strconv"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/metrics"
	"github.com/indoorassets/telemetry-translator/pkg/log"
	"github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/nats-io/nats.go"
)

// Sink publishes flushed FieldChunks as line-protocol points over
// NATS, one message per FieldChunk.
type Sink struct {
	nc       *nats.Conn
	subject  string
	database string
}

// NewSink returns a history sink publishing to subject over nc.
// database is stored on the Sink but is not written into the encoded
// points; every point carries only the device tag.
func NewSink(nc *nats.Conn, subject, database string) *Sink {
	return &Sink{nc: nc, subject: subject, database: database}
}

// Publish encodes and publishes every FieldChunk produced by one
// ChunkBuffer flush. A publish failure for one chunk is logged and
// does not stop the remaining chunks from being attempted (§7: sink
// failures are best-effort, not fatal).
func (s *Sink) Publish(chunks []core.FieldChunk) {
	for _, chunk := range chunks {
		buf, n, err := encodeFieldChunk(chunk)
		if err != nil {
			log.Errorf("[SINK] encoding history chunk for field %q: %v", chunk.Field, err)
			continue
		}
		if n == 0 {
			continue
		}
		if err := s.nc.Publish(s.subject, buf); err != nil {
			log.Errorf("[SINK] publishing history chunk for field %q: %v", chunk.Field, err)
			continue
		}
		metrics.ChunkFlushes.Inc()
		metrics.ChunkRecordsFlushed.Add(float64(n))
	}
}

// encodeFieldChunk serializes one field's flushed devices/entries as
// line-protocol points: measurement name is the field, tagged by
// device (no database tag is written), with one field key "value"
// per entry, a "dcmTime" field, and the sensor-set-buffer time when
// present. The point
// timestamp is the entry's measurement time converted from T-ticks to
// nanoseconds.
func encodeFieldChunk(chunk core.FieldChunk) ([]byte, int, error) {
	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)

	count := 0
	for _, dev := range chunk.Devices {
		for _, entry := range dev.Entries {
			enc.StartLine(chunk.Field)
			enc.AddTag("device", strconv.FormatInt(dev.Device, 10))

			if err := addValueField(&enc, "value", entry.Value); err != nil {
				return nil, 0, fmt.Errorf("field %s device %d: %w", chunk.Field, dev.Device, err)
			}
			enc.AddField("dcmTime", lineprotocol.IntValue(entry.DCMTime))
			if entry.SensorSetBufferTime != nil {
				enc.AddField("sensorSetBufferTime", lineprotocol.IntValue(*entry.SensorSetBufferTime))
			}

			enc.EndLine(ticksToTime(entry.MeasurementTime))
			count++
		}
	}

	if err := enc.Err(); err != nil {
		return nil, 0, err
	}
	return enc.Bytes(), count, nil
}

// addValueField encodes an opaque sample value as the "value" field,
// picking the narrowest line-protocol value type it can.
func addValueField(enc *lineprotocol.Encoder, key string, v any) error {
	switch x := v.(type) {
	case float64:
		enc.AddField(key, lineprotocol.FloatValue(x))
	case float32:
		enc.AddField(key, lineprotocol.FloatValue(float64(x)))
	case int:
		enc.AddField(key, lineprotocol.IntValue(int64(x)))
	case int64:
		enc.AddField(key, lineprotocol.IntValue(x))
	case bool:
		enc.AddField(key, lineprotocol.BoolValue(x))
	case string:
		enc.AddField(key, lineprotocol.StringValue(x))
	default:
		enc.AddField(key, lineprotocol.StringValue(fmt.Sprintf("%v", x)))
	}
	return nil
}

// ticksToTime converts a T-tick measurement time (1 T-tick = 1us) into
// a time.Time for the line-protocol point timestamp.
func ticksToTime(ticks int64) time.Time {
	return time.Unix(0, ticks*int64(time.Microsecond))
}
