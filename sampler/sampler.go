// Package sampler provides the sampling policies applied when deciding
// whether a trace is reported: constant, probabilistic by rate, duration
// threshold, and an OR-combining composite.
//
// Samplers come in two phases. Early samplers run at span start, before any
// duration is known (duration == 0). Late samplers run at span finish, once
// the duration is known. Callers evaluate only the samplers matching the
// current phase and treat the absence of applicable samplers as "always
// sample".
package sampler

import "time"

// Sampler decides whether a trace should be reported.
type Sampler interface {
	// Sample returns true if the trace identified by the 64-bit form of its
	// trace id should be reported. duration is zero during the early phase.
	Sample(operation string, traceID uint64, duration time.Duration) bool

	// IsEarly reports whether the sampler can decide at span start, before
	// the span's duration is known.
	IsEarly() bool
}
