package sampler

import "time"

// Constant always returns a fixed decision.
type Constant struct {
	decision bool
}

// NewConstant creates a sampler that always decides the given value.
func NewConstant(decision bool) *Constant {
	return &Constant{decision: decision}
}

// Sample returns the configured decision.
func (s *Constant) Sample(string, uint64, time.Duration) bool {
	return s.decision
}

// IsEarly reports that constant decisions are available at span start.
func (s *Constant) IsEarly() bool { return true }
