package propagation

import (
	"strings"

	"github.com/meterwave/tracing-go/trace"
)

// Keys used by the text-map format. Extraction matches them
// case-insensitively.
const (
	prefix        = "wf-ot-"
	traceIDKey    = prefix + "traceid"
	spanIDKey     = prefix + "spanid"
	sampleKey     = prefix + "sample"
	baggagePrefix = prefix + "bag-"
)

// TextMapPropagator carries contexts as individually prefixed string pairs.
type TextMapPropagator struct{}

// NewTextMapPropagator creates the generic text-map propagator.
func NewTextMapPropagator() *TextMapPropagator {
	return &TextMapPropagator{}
}

// Inject writes trace id, span id, sampling flag, and baggage.
func (p *TextMapPropagator) Inject(sc trace.SpanContext, carrier interface{}) error {
	writer, ok := carrier.(TextMapWriter)
	if !ok {
		return ErrInvalidCarrier
	}
	writer.Set(traceIDKey, sc.TraceID().String())
	writer.Set(spanIDKey, sc.SpanID().String())
	if decision, ok := sc.SamplingDecision(); ok {
		if decision {
			writer.Set(sampleKey, "true")
		} else {
			writer.Set(sampleKey, "false")
		}
	}
	sc.ForeachBaggageItem(func(k, v string) bool {
		writer.Set(baggagePrefix+k, v)
		return true
	})
	return nil
}

// Extract reads a context back, matching keys case-insensitively. Both
// identifiers must be present and parseable for a context to be returned.
func (p *TextMapPropagator) Extract(carrier interface{}) (*trace.SpanContext, error) {
	reader, ok := carrier.(TextMapReader)
	if !ok {
		return nil, ErrInvalidCarrier
	}

	var (
		traceID, spanID   trace.ID
		haveTrace         bool
		haveSpan          bool
		sampled, haveFlag bool
		baggage           map[string]string
	)
	_ = reader.ForeachKey(func(k, v string) error {
		key := strings.ToLower(k)
		switch {
		case key == traceIDKey:
			if id, err := trace.ParseID(v); err == nil {
				traceID, haveTrace = id, true
			}
		case key == spanIDKey:
			if id, err := trace.ParseID(v); err == nil {
				spanID, haveSpan = id, true
			}
		case key == sampleKey:
			sampled = strings.ToLower(v) == "true"
			haveFlag = true
		case strings.HasPrefix(key, baggagePrefix):
			if baggage == nil {
				baggage = make(map[string]string)
			}
			baggage[strings.TrimPrefix(key, baggagePrefix)] = v
		}
		return nil
	})
	if !haveTrace || !haveSpan {
		return nil, nil
	}

	sc := trace.NewSpanContext(traceID, spanID).WithBaggage(baggage)
	if haveFlag {
		sc = sc.WithSamplingDecision(sampled)
	}
	return &sc, nil
}
