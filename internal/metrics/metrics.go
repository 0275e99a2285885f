// Package metrics exposes Prometheus instrumentation for the synthesis
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	SynthesisTotal    *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
	EngineInFlight    prometheus.Gauge
	StreamChunks      prometheus.Counter
}

// New registers the collectors against reg. A nil registerer yields working
// but unregistered collectors, which keeps tests quiet.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SynthesisTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicegate_synthesis_requests_total",
			Help: "Synthesis requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		SynthesisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicegate_synthesis_duration_seconds",
			Help:    "Wall-clock duration of synthesis requests.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		EngineInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicegate_engine_inflight_calls",
			Help: "Engine inference calls currently executing.",
		}),
		StreamChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicegate_stream_chunks_total",
			Help: "Audio chunks emitted over streaming transports.",
		}),
	}
}
