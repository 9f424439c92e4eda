package sampler

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Rate samples a deterministic fraction of traces. The decision is a pure
// function of the trace id, so every span of a trace (and every retry of the
// decision) lands on the same side of the rate boundary.
type Rate struct {
	rate float64
}

// NewRate creates a rate sampler. rate must be within [0, 1].
func NewRate(rate float64) (*Rate, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("sampling rate %v outside [0, 1]", rate)
	}
	return &Rate{rate: rate}, nil
}

// Rate returns the configured sampling rate.
func (s *Rate) Rate() float64 { return s.rate }

// Sample hashes the trace id into [0, 1) and compares against the rate.
func (s *Rate) Sample(_ string, traceID uint64, _ time.Duration) bool {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], traceID)
	h := xxhash.Sum64(buf[:])
	// 53 bits of the hash give an exact float64 in [0, 1).
	u := float64(h>>11) / float64(1<<53)
	return u < s.rate
}

// IsEarly reports that rate decisions are available at span start.
func (s *Rate) IsEarly() bool { return true }
