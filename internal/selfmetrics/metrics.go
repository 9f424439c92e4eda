// Package selfmetrics exposes the SDK's own health as Prometheus metrics:
// spans reported, spans dropped and why, and sender failures. Registration
// happens once on the default registry so host applications scraping
// Prometheus see the tracer's behavior without extra wiring.
package selfmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded on SpansDropped.
const (
	ReasonQueueFull   = "queue_full"
	ReasonSendFailure = "send_failure"
	ReasonUnsampled   = "unsampled"
)

var (
	// SpansReported counts spans handed to a sender.
	SpansReported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracing_spans_reported_total",
		Help: "Total number of spans delivered to the backend sender",
	})

	// SpansDropped counts spans that were finished but never delivered.
	SpansDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracing_spans_dropped_total",
		Help: "Total number of finished spans dropped, by reason",
	}, []string{"reason"})

	// QueueDepth tracks the buffered reporter's current queue occupancy.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracing_reporter_queue_depth",
		Help: "Current number of spans waiting in the buffered reporter",
	})

	// MetricPoints counts derived RED metric points emitted.
	MetricPoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracing_derived_metric_points_total",
		Help: "Total number of derived RED metric points emitted",
	})

	// Heartbeats counts heartbeat signals emitted.
	Heartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracing_heartbeats_total",
		Help: "Total number of component heartbeat points emitted",
	})
)
