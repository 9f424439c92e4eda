package tracing

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/meterwave/tracing-go/application"
	"github.com/meterwave/tracing-go/trace"
)

// singleValuedKeys replace rather than append when set repeatedly.
var singleValuedKeys = map[string]bool{
	application.ApplicationKey: true,
	application.ServiceKey:     true,
	application.ClusterKey:     true,
	application.ShardKey:       true,
}

// Span is one mutable, thread-safe unit of work. A span may be captured by
// one goroutine while another reads or finishes it; every mutable field is
// guarded by the span's mutex. Mutating a span after Finish is writer error
// and left undefined.
type Span struct {
	tracer *Tracer

	mu        sync.Mutex
	operation string
	start     time.Time
	duration  time.Duration
	context   trace.SpanContext
	parents   []trace.ID
	follows   []trace.ID
	tags      []trace.Tag
	logs      []trace.Log
	finished  bool
	isError   bool

	// forced is set by the forcing tags (error, sampling.priority) and
	// suppresses the late re-sampling step at finish.
	forced bool
}

// FinishOptions configures FinishWithOptions.
type FinishOptions struct {
	// FinishTime overrides the finish timestamp. Zero means now.
	FinishTime time.Time
}

// Tracer returns the tracer that created the span.
func (s *Span) Tracer() *Tracer { return s.tracer }

// Operation returns the span's operation name.
func (s *Span) Operation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operation
}

// SetOperationName renames the span's operation.
func (s *Span) SetOperationName(operation string) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operation = operation
	return s
}

// Context returns the span's current context. The returned value is
// immutable; a re-sampled or baggage-carrying successor replaces it under
// the span's lock.
func (s *Span) Context() trace.SpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Start returns the span's start time.
func (s *Span) Start() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

// Duration returns the duration set by the first Finish, zero before that.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// IsError reports whether an error tag was ever observed.
func (s *Span) IsError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isError
}

// SetTag records a tag. Most keys are multi-valued: repeated sets append.
// The application/service/cluster/shard keys are single-valued and replace.
//
// Two tags have side effects, applied synchronously: error=true marks the
// span failed and forces sampling unless a force already happened, and a
// sampling.priority above zero forces sampling outright.
func (s *Span) SetTag(key string, value interface{}) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTagLocked(key, tagString(value))

	switch key {
	case ErrorTagKey:
		if isTrue(value) {
			s.isError = true
			if !s.forced {
				s.forced = true
				s.context = s.context.WithSamplingDecision(true)
			}
		}
	case SamplingPriorityTagKey:
		if priority, ok := tagNumber(value); ok && priority > 0 {
			s.forced = true
			s.context = s.context.WithSamplingDecision(true)
		}
	}
	return s
}

// setTagLocked appends or replaces the raw tag pair. The caller holds the
// lock or exclusively owns an unpublished span.
func (s *Span) setTagLocked(key, value string) {
	if singleValuedKeys[key] {
		for i := range s.tags {
			if s.tags[i].Key == key {
				s.tags[i].Value = value
				return
			}
		}
	}
	s.tags = append(s.tags, trace.Tag{Key: key, Value: value})
}

// Tags returns a copy of the span's ordered tag pairs.
func (s *Span) Tags() []trace.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trace.Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// TagValues returns every value recorded under key, in order.
func (s *Span) TagValues(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, t := range s.tags {
		if t.Key == key {
			out = append(out, t.Value)
		}
	}
	return out
}

// Log records a timestamped set of fields.
func (s *Span) Log(fields map[string]string) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, trace.Log{
		TimestampMicros: trace.Micros(time.Now()),
		Fields:          fields,
	})
	return s
}

// SetBaggageItem attaches a baggage item propagated to all descendants.
func (s *Span) SetBaggageItem(key, value string) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = s.context.WithBaggageItem(key, value)
	return s
}

// BaggageItem returns the baggage value for key, empty when absent.
func (s *Span) BaggageItem(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.context.LookupBaggage(key)
	return v
}

// Finish completes the span now.
func (s *Span) Finish() {
	s.FinishWithOptions(FinishOptions{})
}

// FinishWithOptions completes the span: the first call sets the duration,
// re-samples an undecided or negative decision with the late-phase samplers
// (a decision only ever moves toward sampled here), and reports the span.
// Finish is idempotent; concurrent calls execute the side effects once.
func (s *Span) FinishWithOptions(opts FinishOptions) {
	finish := opts.FinishTime
	if finish.IsZero() {
		finish = time.Now()
	}

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.duration = finish.Sub(s.start)

	if !s.forced {
		decision, ok := s.context.SamplingDecision()
		switch {
		case !ok:
			// Still undecided: the late phase owns the decision.
			s.context = s.context.WithSamplingDecision(
				s.tracer.lateDecision(s.operation, s.context.TraceID().Lower64(), s.duration))
		case !decision:
			// A negative decision may only move toward sampled here.
			if s.tracer.lateDecision(s.operation, s.context.TraceID().Lower64(), s.duration) {
				s.context = s.context.WithSamplingDecision(true)
			}
		}
	}

	raw := trace.RawSpan{
		Context:   s.context,
		Operation: s.operation,
		Start:     s.start,
		Duration:  s.duration,
		Parents:   s.parents,
		Follows:   s.follows,
		Tags:      append([]trace.Tag(nil), s.tags...),
		Logs:      append([]trace.Log(nil), s.logs...),
	}
	isError := s.isError
	s.mu.Unlock()

	s.tracer.finishSpan(raw, isError)
}

func tagString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func isTrue(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

func tagNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
