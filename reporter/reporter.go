// Package reporter delivers finished, sampled spans to a backend sender.
// Strategies compose: a buffered reporter wraps a direct one to decouple
// span-finishing threads from network latency, and a composite fans out to
// several delegates. Report never fails the caller; delivery problems are
// counted, logged at a sampled rate, and the span is dropped.
package reporter

import (
	"github.com/meterwave/tracing-go/sender"
	"github.com/meterwave/tracing-go/trace"
)

// Reporter consumes finished, sampled spans.
type Reporter interface {
	// Report delivers or enqueues one span. It never blocks past a bounded
	// enqueue attempt and never returns an error to the finishing span.
	Report(span trace.RawSpan)

	// FailureCount returns the number of spans this reporter failed to
	// deliver, whether dropped on a full queue or refused by the sender.
	FailureCount() int64

	// Close flushes buffered spans within a bounded time and releases
	// resources. It returns unconditionally.
	Close() error
}

// SenderProvider is implemented by reporters that can expose an underlying
// sender. The tracer uses it to emit derived RED metrics and heartbeats
// through the same backend the spans go to.
type SenderProvider interface {
	Sender() sender.Sender
}

// SenderOf extracts the first reachable sender from a reporter, if any.
func SenderOf(r Reporter) (sender.Sender, bool) {
	if p, ok := r.(SenderProvider); ok {
		if s := p.Sender(); s != nil {
			return s, true
		}
	}
	return nil, false
}
