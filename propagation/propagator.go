package propagation

import "github.com/meterwave/tracing-go/trace"

// Propagator encodes a span context into a carrier and decodes it back.
type Propagator interface {
	// Inject writes the context into the carrier. It fails only on a
	// carrier lacking the TextMapWriter capability.
	Inject(sc trace.SpanContext, carrier interface{}) error

	// Extract reads a context from the carrier. A missing or malformed
	// context yields (nil, nil); only a carrier lacking the TextMapReader
	// capability is an error.
	Extract(carrier interface{}) (*trace.SpanContext, error)
}
