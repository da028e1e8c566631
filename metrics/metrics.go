// Package metrics - Prometheus instrumentation for the monitoring pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters. All fields are safe for concurrent
// use.
type Metrics struct {
	FramesRead       prometheus.Counter
	Inferences       prometheus.Counter
	InferenceErrors  prometheus.Counter
	Detections       prometheus.Counter
	AlertsFired      prometheus.Counter
	AlertsSuppressed prometheus.Counter
	TickDuration     prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		FramesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_frames_read_total",
			Help: "Frames read from the capture source.",
		}),
		Inferences: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_inferences_total",
			Help: "Detector invocations.",
		}),
		InferenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_inference_errors_total",
			Help: "Detector invocations that failed; the cached detections were reused.",
		}),
		Detections: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_detections_total",
			Help: "Detections returned across all inferences.",
		}),
		AlertsFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_alerts_fired_total",
			Help: "Alerts that fired (evidence written, alarm dispatched).",
		}),
		AlertsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_alerts_suppressed_total",
			Help: "In-zone detections swallowed by the cooldown window.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentry_tick_duration_seconds",
			Help:    "Wall time of one capture-detect-render tick.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		registry: registry,
	}
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve blocks serving /metrics on addr.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
