// Package metrics exposes the translator's operational counters via
// prometheus/client_golang: patches emitted, samples skipped by
// reason, chunk flushes, and outbound queue depth/drops (the
// backpressure counter §5 calls out as a SHOULD).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PatchesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry_translator",
		Name:      "patches_emitted_total",
		Help:      "Live-attribute patches produced, by target collection.",
	}, []string{"collection"})

	SamplesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry_translator",
		Name:      "samples_skipped_total",
		Help:      "TSD samples rejected by the processor's validity gates, by reason.",
	}, []string{"reason"})

	ChunkFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "telemetry_translator",
		Name:      "chunk_flushes_total",
		Help:      "Chunk buffer flushes handed to the history sink.",
	})

	ChunkRecordsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "telemetry_translator",
		Name:      "chunk_records_flushed_total",
		Help:      "Chunk buffer records included across all flushes.",
	})

	OutboundQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "telemetry_translator",
		Name:      "outbound_queue_depth",
		Help:      "Current depth of the outbound websocket sink queue, by collection.",
	}, []string{"collection"})

	OutboundQueueDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry_translator",
		Name:      "outbound_queue_dropped_total",
		Help:      "Patches dropped because the outbound queue high-water mark was reached.",
	}, []string{"collection"})

	SinkReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry_translator",
		Name:      "sink_reconnects_total",
		Help:      "Reconnect attempts against a DCM collection websocket sink.",
	}, []string{"collection"})

	DedupWindowSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "telemetry_translator",
		Name:      "dedup_window_size",
		Help:      "Current number of entries held in the dedup window.",
	})
)
