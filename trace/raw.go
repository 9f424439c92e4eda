package trace

import "time"

// ReferenceType describes the relationship of a span to a referenced context.
type ReferenceType int

const (
	// ChildOf marks the referenced context as a synchronous parent.
	ChildOf ReferenceType = iota
	// FollowsFrom marks the referenced context as an asynchronous predecessor.
	FollowsFrom
)

// Reference is a typed edge from a span to another span's context.
type Reference struct {
	Type    ReferenceType
	Context SpanContext
}

// Tag is one key/value pair. Tags are ordered and, apart from the
// single-valued keys, multi-valued: the same key may appear repeatedly.
type Tag struct {
	Key   string
	Value string
}

// Log is one timestamped set of fields attached to a span.
type Log struct {
	TimestampMicros int64
	Fields          map[string]string
}

// RawSpan is an immutable snapshot of a finished span, taken under the span's
// lock and handed to reporters. Reporters must not mutate it.
type RawSpan struct {
	Context   SpanContext
	Operation string
	Start     time.Time
	Duration  time.Duration
	Parents   []ID
	Follows   []ID
	Tags      []Tag
	Logs      []Log
}

// FirstTagValue returns the first value recorded for key, if any.
func (r RawSpan) FirstTagValue(key string) (string, bool) {
	for _, t := range r.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}
