package sampler

import "time"

// Composite combines samplers with OR semantics within a phase: the
// phase-appropriate members are consulted and any true decision wins. A
// composite with no member matching the requested phase makes no decision;
// Evaluate exposes that distinction to the caller, while Sample (the plain
// Sampler contract) maps "no applicable member" to false.
type Composite struct {
	members []Sampler
}

// NewComposite creates a composite over the given samplers.
func NewComposite(members ...Sampler) *Composite {
	return &Composite{members: members}
}

// Evaluate runs the members matching the given phase. decided is false when
// no member matched the phase, in which case sampled is meaningless.
func (s *Composite) Evaluate(operation string, traceID uint64, duration time.Duration, early bool) (sampled, decided bool) {
	for _, m := range s.members {
		if m.IsEarly() != early {
			continue
		}
		decided = true
		if m.Sample(operation, traceID, duration) {
			return true, true
		}
	}
	return false, decided
}

// Sample evaluates the phase inferred from the duration: early while the
// duration is still zero, late afterwards.
func (s *Composite) Sample(operation string, traceID uint64, duration time.Duration) bool {
	sampled, _ := s.Evaluate(operation, traceID, duration, duration == 0)
	return sampled
}

// IsEarly reports whether any member can decide at span start.
func (s *Composite) IsEarly() bool {
	for _, m := range s.members {
		if m.IsEarly() {
			return true
		}
	}
	return false
}
