package reporter

import (
	"errors"

	"github.com/meterwave/tracing-go/sender"
	"github.com/meterwave/tracing-go/trace"
)

// Composite fans out every span to an ordered list of delegates. Failure
// counts aggregate by summation.
type Composite struct {
	delegates []Reporter
}

// NewComposite creates a reporter delegating to the given reporters in order.
func NewComposite(delegates ...Reporter) *Composite {
	return &Composite{delegates: delegates}
}

// Report forwards the span to every delegate.
func (r *Composite) Report(span trace.RawSpan) {
	for _, d := range r.delegates {
		d.Report(span)
	}
}

// FailureCount sums the delegates' failure counts.
func (r *Composite) FailureCount() int64 {
	var total int64
	for _, d := range r.delegates {
		total += d.FailureCount()
	}
	return total
}

// Sender returns the first delegate sender, if any.
func (r *Composite) Sender() sender.Sender {
	for _, d := range r.delegates {
		if s, ok := SenderOf(d); ok {
			return s
		}
	}
	return nil
}

// Close closes every delegate, joining their errors.
func (r *Composite) Close() error {
	var errs []error
	for _, d := range r.delegates {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
