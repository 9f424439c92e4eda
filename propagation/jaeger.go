package propagation

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/meterwave/tracing-go/trace"
)

const (
	defaultTraceIDHeader = "uber-trace-id"
	defaultBaggagePrefix = "uberctx-"

	// parentIDBaggageKey carries an extracted parent span id forward so a
	// later Inject reproduces the original header.
	parentIDBaggageKey = "parent-id"
)

// JaegerPropagator carries contexts in the Jaeger composite header format:
// "traceId:spanId:parentId:flags", ids as lowercase hex with leading zeros
// stripped.
type JaegerPropagator struct {
	traceIDHeader string
	baggagePrefix string
}

// JaegerOption configures the Jaeger propagator.
type JaegerOption func(*JaegerPropagator)

// WithTraceIDHeader overrides the composite header name.
func WithTraceIDHeader(name string) JaegerOption {
	return func(p *JaegerPropagator) { p.traceIDHeader = strings.ToLower(name) }
}

// WithBaggagePrefix overrides the baggage item header prefix.
func WithBaggagePrefix(prefix string) JaegerOption {
	return func(p *JaegerPropagator) { p.baggagePrefix = strings.ToLower(prefix) }
}

// NewJaegerPropagator creates a Jaeger-compatible propagator.
func NewJaegerPropagator(opts ...JaegerOption) *JaegerPropagator {
	p := &JaegerPropagator{
		traceIDHeader: defaultTraceIDHeader,
		baggagePrefix: defaultBaggagePrefix,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inject writes the composite header and prefixed baggage items.
func (p *JaegerPropagator) Inject(sc trace.SpanContext, carrier interface{}) error {
	writer, ok := carrier.(TextMapWriter)
	if !ok {
		return ErrInvalidCarrier
	}

	parent := "0"
	if v, ok := sc.LookupBaggage(parentIDBaggageKey); ok {
		parent = v
	}
	flag := "0"
	if decision, ok := sc.SamplingDecision(); ok && decision {
		flag = "1"
	}
	header := strings.Join([]string{
		sc.TraceID().Hex(), sc.SpanID().Hex(), parent, flag,
	}, ":")
	writer.Set(p.traceIDHeader, header)

	sc.ForeachBaggageItem(func(k, v string) bool {
		if k != parentIDBaggageKey {
			writer.Set(p.baggagePrefix+k, v)
		}
		return true
	})
	return nil
}

// Extract reads the composite header back. A header with the wrong field
// count or an empty trace-id field means no context is present.
func (p *JaegerPropagator) Extract(carrier interface{}) (*trace.SpanContext, error) {
	reader, ok := carrier.(TextMapReader)
	if !ok {
		return nil, ErrInvalidCarrier
	}

	var (
		header  string
		found   bool
		baggage map[string]string
	)
	_ = reader.ForeachKey(func(k, v string) error {
		key := strings.ToLower(k)
		switch {
		case key == p.traceIDHeader:
			header, found = v, true
		case strings.HasPrefix(key, p.baggagePrefix):
			if baggage == nil {
				baggage = make(map[string]string)
			}
			baggage[strings.TrimPrefix(key, p.baggagePrefix)] = v
		}
		return nil
	})
	if !found {
		return nil, nil
	}

	sc := parseCompositeHeader(header)
	if sc == nil {
		return nil, nil
	}
	for k, v := range baggage {
		*sc = sc.WithBaggageItem(k, v)
	}
	return sc, nil
}

// parseCompositeHeader decodes "traceId:spanId:parentId:flags", returning
// nil for anything malformed.
func parseCompositeHeader(header string) *trace.SpanContext {
	decoded, err := url.QueryUnescape(header)
	if err != nil {
		return nil
	}
	parts := strings.Split(decoded, ":")
	if len(parts) != 4 || parts[0] == "" {
		return nil
	}

	traceID, err := trace.ParseHex(parts[0])
	if err != nil {
		return nil
	}
	spanID, err := trace.ParseHex(parts[1])
	if err != nil {
		return nil
	}
	flags, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return nil
	}

	sc := trace.NewSampledSpanContext(traceID, spanID, flags&1 == 1)
	if parentID, err := trace.ParseHex(parts[2]); err == nil && !parentID.IsZero() {
		sc = sc.WithBaggageItem(parentIDBaggageKey, parentID.Hex())
	}
	return &sc
}
