package tracing

import "context"

// The active span travels as a context value: child work items started from
// a derived context inherit it automatically, activating a span in one
// branch cannot leak into siblings, and leaving a scope restores the
// previous active span simply by using the outer context again.

type activeSpanKey struct{}

// ContextWithSpan returns a context carrying span as the active span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, activeSpanKey{}, span)
}

// SpanFromContext returns the active span in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(activeSpanKey{}).(*Span)
	return span
}

// StartSpanFromContext starts a span that is a child of the active span in
// ctx (unless overridden by explicit references or IgnoreActiveSpan) and
// returns a derived context with the new span active.
func StartSpanFromContext(ctx context.Context, tracer *Tracer, operation string, opts ...StartSpanOption) (*Span, context.Context) {
	opts = append(opts, WithActiveSpanFrom(ctx))
	span := tracer.StartSpan(operation, opts...)
	return span, ContextWithSpan(ctx, span)
}
