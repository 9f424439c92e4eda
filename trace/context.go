package trace

import (
	"errors"
	"fmt"
)

// ErrBaggageNotFound is returned by BaggageItem for an absent key.
var ErrBaggageNotFound = errors.New("baggage item not found")

// SpanContext identifies a position in a trace. It is logically immutable:
// every mutation returns a new value, and the owning span swaps its current
// context under its own lock.
type SpanContext struct {
	traceID ID
	spanID  ID

	// baggage is nil unless an item was set or inherited. The map is never
	// mutated after construction.
	baggage map[string]string

	// decision is nil while no sampling decision has been made for the trace.
	decision *bool
}

// NewSpanContext creates a context with the given identifiers and no baggage
// or sampling decision.
func NewSpanContext(traceID, spanID ID) SpanContext {
	return SpanContext{traceID: traceID, spanID: spanID}
}

// NewSampledSpanContext creates a context carrying a sampling decision, as
// extracted from a propagation carrier.
func NewSampledSpanContext(traceID, spanID ID, sampled bool) SpanContext {
	return SpanContext{traceID: traceID, spanID: spanID, decision: &sampled}
}

// TraceID returns the 128-bit trace identifier shared by all spans of a trace.
func (c SpanContext) TraceID() ID { return c.traceID }

// SpanID returns the 128-bit identifier of this span.
func (c SpanContext) SpanID() ID { return c.spanID }

// IsSampled reports whether a sampling decision has been made. It says
// nothing about the decision's value; use SamplingDecision for that.
func (c SpanContext) IsSampled() bool { return c.decision != nil }

// SamplingDecision returns the sampling decision and whether one exists.
func (c SpanContext) SamplingDecision() (decision, ok bool) {
	if c.decision == nil {
		return false, false
	}
	return *c.decision, true
}

// WithSamplingDecision returns a copy of the context with the decision set.
func (c SpanContext) WithSamplingDecision(sampled bool) SpanContext {
	c.decision = &sampled
	return c
}

// WithBaggageItem returns a copy of the context with the item added or
// overwritten. The receiver is never mutated.
func (c SpanContext) WithBaggageItem(key, value string) SpanContext {
	baggage := make(map[string]string, len(c.baggage)+1)
	for k, v := range c.baggage {
		baggage[k] = v
	}
	baggage[key] = value
	c.baggage = baggage
	return c
}

// WithBaggage returns a copy of the context holding the given baggage map.
// The caller must not retain a reference to the map.
func (c SpanContext) WithBaggage(baggage map[string]string) SpanContext {
	if len(baggage) == 0 {
		c.baggage = nil
		return c
	}
	c.baggage = baggage
	return c
}

// BaggageItem returns the value for key, failing with ErrBaggageNotFound
// when the key is absent.
func (c SpanContext) BaggageItem(key string) (string, error) {
	v, ok := c.baggage[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrBaggageNotFound, key)
	}
	return v, nil
}

// LookupBaggage is the optional-form baggage read used internally.
func (c SpanContext) LookupBaggage(key string) (string, bool) {
	v, ok := c.baggage[key]
	return v, ok
}

// ForeachBaggageItem calls handler for every baggage item until it returns
// false.
func (c SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {
	for k, v := range c.baggage {
		if !handler(k, v) {
			break
		}
	}
}

// BaggageCount returns the number of baggage items.
func (c SpanContext) BaggageCount() int { return len(c.baggage) }
