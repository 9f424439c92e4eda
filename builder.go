package tracing

import (
	"context"
	"time"

	"github.com/meterwave/tracing-go/trace"
)

// StartSpanOptions collects the configuration of one StartSpan call.
type StartSpanOptions struct {
	// References to other span contexts; the first ChildOf reference, or
	// failing that the first FollowsFrom reference, supplies the ancestry.
	References []trace.Reference

	// StartTime overrides the span's start time. Zero means now.
	StartTime time.Time

	// Tags are set on the span at construction, after the tracer's global
	// tags.
	Tags []trace.Tag

	// Context supplies the ambient active span adopted as an implicit
	// parent when no reference is given.
	Context context.Context

	// IgnoreActive suppresses adoption of the ambient active span.
	IgnoreActive bool
}

// StartSpanOption configures one StartSpan call.
type StartSpanOption func(*StartSpanOptions)

// ChildOf references the given context as a parent.
func ChildOf(sc trace.SpanContext) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.References = append(o.References, trace.Reference{Type: trace.ChildOf, Context: sc})
	}
}

// FollowsFrom references the given context as an asynchronous predecessor.
func FollowsFrom(sc trace.SpanContext) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.References = append(o.References, trace.Reference{Type: trace.FollowsFrom, Context: sc})
	}
}

// StartTime sets an explicit start time.
func StartTime(t time.Time) StartSpanOption {
	return func(o *StartSpanOptions) { o.StartTime = t }
}

// WithTag sets a tag on the new span.
func WithTag(key, value string) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.Tags = append(o.Tags, trace.Tag{Key: key, Value: value})
	}
}

// WithActiveSpanFrom adopts the active span in ctx, if any, as an implicit
// parent.
func WithActiveSpanFrom(ctx context.Context) StartSpanOption {
	return func(o *StartSpanOptions) { o.Context = ctx }
}

// IgnoreActiveSpan makes the new span a root even when an active span is
// reachable through the supplied context.
func IgnoreActiveSpan() StartSpanOption {
	return func(o *StartSpanOptions) { o.IgnoreActive = true }
}

// StartSpan creates a new span.
//
// Ancestry resolution: the first ChildOf reference wins, then the first
// FollowsFrom reference, then the ambient active span unless ignored;
// otherwise the span is a trace root with a fresh trace id. The span id is
// always freshly generated. Baggage is merged from all parents then all
// follows, first write per key winning. A root span receives its head
// sampling decision here, before the span is returned.
func (t *Tracer) StartSpan(operation string, opts ...StartSpanOption) *Span {
	var o StartSpanOptions
	for _, opt := range opts {
		opt(&o)
	}
	return t.startSpan(operation, o)
}

func (t *Tracer) startSpan(operation string, o StartSpanOptions) *Span {
	start := o.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	var parents, follows []trace.Reference
	for _, ref := range o.References {
		switch ref.Type {
		case trace.ChildOf:
			parents = append(parents, ref)
		case trace.FollowsFrom:
			follows = append(follows, ref)
		}
	}
	if len(parents) == 0 && len(follows) == 0 && !o.IgnoreActive && o.Context != nil {
		if active := SpanFromContext(o.Context); active != nil {
			parents = append(parents, trace.Reference{Type: trace.ChildOf, Context: active.Context()})
		}
	}

	sc := t.resolveContext(operation, parents, follows)

	span := &Span{
		tracer:    t,
		operation: operation,
		start:     start,
		context:   sc,
	}
	for _, ref := range parents {
		span.parents = append(span.parents, ref.Context.SpanID())
	}
	for _, ref := range follows {
		span.follows = append(span.follows, ref.Context.SpanID())
	}

	// Global tags go first so per-span tags override the single-valued
	// keys.
	for _, tag := range t.globalTags {
		span.setTagLocked(tag.Key, tag.Value)
	}
	for _, tag := range o.Tags {
		span.setTagLocked(tag.Key, tag.Value)
	}
	return span
}

// resolveContext inherits trace id, sampling decision, and baggage from the
// ancestry, then head-samples when no decision was inherited.
func (t *Tracer) resolveContext(operation string, parents, follows []trace.Reference) trace.SpanContext {
	var ancestor *trace.SpanContext
	if len(parents) > 0 {
		ancestor = &parents[0].Context
	} else if len(follows) > 0 {
		ancestor = &follows[0].Context
	}

	var sc trace.SpanContext
	if ancestor != nil {
		sc = trace.NewSpanContext(ancestor.TraceID(), trace.NewID())
		if decision, ok := ancestor.SamplingDecision(); ok {
			sc = sc.WithSamplingDecision(decision)
		}
		sc = sc.WithBaggage(mergeBaggage(parents, follows))
	} else {
		sc = trace.NewSpanContext(trace.NewID(), trace.NewID())
	}

	if !sc.IsSampled() {
		// No inherited decision makes this an effective trace root.
		if decision, decided := t.headDecision(operation, sc.TraceID().Lower64()); decided {
			sc = sc.WithSamplingDecision(decision)
		}
	}
	return sc
}

// mergeBaggage merges all parents' then all follows' baggage into one map.
// The first occurrence of a key wins; later references never overwrite.
func mergeBaggage(parents, follows []trace.Reference) map[string]string {
	var merged map[string]string
	insert := func(ref trace.Reference) {
		ref.Context.ForeachBaggageItem(func(k, v string) bool {
			if merged == nil {
				merged = make(map[string]string)
			}
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
			return true
		})
	}
	for _, ref := range parents {
		insert(ref)
	}
	for _, ref := range follows {
		insert(ref)
	}
	return merged
}
