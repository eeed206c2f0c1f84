// ABOUTME: Prometheus metrics over live session counters
// ABOUTME: Registers counter and gauge funcs on a private registry
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harperreed/salescoach/pkg/coach"
)

const namespace = "salescoach"

// Metrics exposes session statistics to Prometheus
type Metrics struct {
	registry *prometheus.Registry
}

// New registers metrics that read from stats on every scrape
func New(stats func() coach.Stats) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counter := func(name, help string, value func(coach.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(stats())) })
	}
	gauge := func(name, help string, value func(coach.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stats()) })
	}

	registry.MustRegister(
		counter("blocks_captured_total", "Capture blocks delivered by the input device",
			func(s coach.Stats) int64 { return s.BlocksCaptured }),
		counter("blocks_sent_total", "Encoded blocks queued to the live service",
			func(s coach.Stats) int64 { return s.BlocksSent }),
		counter("blocks_dropped_total", "Blocks dropped because the session was not ready or the send queue was full",
			func(s coach.Stats) int64 { return s.BlocksDropped }),
		counter("bytes_sent_total", "Base64 payload bytes queued to the live service",
			func(s coach.Stats) int64 { return s.BytesSent }),
		counter("buffers_decoded_total", "Model audio chunks decoded for playback",
			func(s coach.Stats) int64 { return s.BuffersDecoded }),
		counter("buffers_scheduled_total", "Decoded buffers scheduled on the output",
			func(s coach.Stats) int64 { return s.BuffersScheduled }),
		counter("decode_errors_total", "Model audio chunks that failed to decode",
			func(s coach.Stats) int64 { return s.DecodeErrors }),
		counter("stale_chunks_total", "Model audio chunks skipped because their turn was interrupted",
			func(s coach.Stats) int64 { return s.StaleChunks }),
		counter("interruptions_total", "Model turns interrupted by the speaker",
			func(s coach.Stats) int64 { return s.Interruptions }),
		counter("tool_calls_total", "Function calls received from the model",
			func(s coach.Stats) int64 { return s.ToolCalls }),
		counter("turns_completed_total", "Model turns completed",
			func(s coach.Stats) int64 { return s.TurnsCompleted }),
		gauge("active_sources", "Playback sources scheduled or playing",
			func(s coach.Stats) float64 { return float64(s.ActiveSources) }),
		gauge("capture_sample_rate_hz", "Native sample rate of the capture device",
			func(s coach.Stats) float64 { return float64(s.CaptureRate) }),
		gauge("ready", "1 when the session can send audio",
			func(s coach.Stats) float64 {
				if s.State == coach.StateReady {
					return 1
				}
				return 0
			}),
	)

	return &Metrics{registry: registry}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
