// Package sender defines the wire-level contract the SDK reports through,
// and an HTTP direct-ingestion implementation of it. The SDK itself never
// retries: delivery guarantees beyond one attempt belong to the Sender.
package sender

import (
	"github.com/meterwave/tracing-go/trace"
)

// Sender transmits finished spans, metrics, and duration distributions to a
// telemetry backend. Implementations must be safe for concurrent use; all
// Send methods fail with a transport error that callers count and drop.
type Sender interface {
	// SendSpan transmits one finished span. Times are epoch milliseconds and
	// the duration is in milliseconds.
	SendSpan(operation string, startMillis, durationMillis int64, source string,
		traceID, spanID trace.ID, parents, follows []trace.ID,
		tags []trace.Tag, logs []trace.Log) error

	// SendMetric transmits one metric point.
	SendMetric(name string, value float64, timestampMillis int64, source string,
		tags map[string]string) error

	// SendDistribution transmits one duration distribution point. Centroids
	// pair a value with how often it occurred.
	SendDistribution(name string, centroids []Centroid, timestampMillis int64,
		source string, tags map[string]string) error

	// FailureCount returns the number of transport failures observed so far.
	FailureCount() int64

	// Close flushes and releases the sender's resources.
	Close() error
}

// Centroid is one (value, count) pair of a distribution.
type Centroid struct {
	Value float64
	Count int
}
