package sampler

import "time"

// Duration samples every span slower than a threshold. It can only run in
// the late phase, once the finished span's duration is known.
type Duration struct {
	threshold time.Duration
}

// NewDuration creates a sampler reporting spans that took strictly longer
// than thresholdMillis.
func NewDuration(thresholdMillis int64) *Duration {
	return &Duration{threshold: time.Duration(thresholdMillis) * time.Millisecond}
}

// Sample returns true iff the span's duration exceeds the threshold.
func (s *Duration) Sample(_ string, _ uint64, duration time.Duration) bool {
	return duration > s.threshold
}

// IsEarly reports that duration decisions require a finished span.
func (s *Duration) IsEarly() bool { return false }
