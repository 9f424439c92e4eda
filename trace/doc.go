// Package trace defines the value types shared across the SDK: trace and
// span identifiers, the immutable SpanContext, span references, and the
// RawSpan snapshot handed to reporters.
//
// Everything in this package is either immutable or a plain value; the
// mutable state machine lives in the root tracing package.
package trace
