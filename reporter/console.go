package reporter

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/meterwave/tracing-go/trace"
)

// Console writes a human-readable dump of every span, for local
// development. It never fails the caller.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console reporter writing to out; nil means stdout.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Report prints the span.
func (r *Console) Report(span trace.RawSpan) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "span %s trace=%s span=%s start=%s duration=%s\n",
		span.Operation,
		span.Context.TraceID(),
		span.Context.SpanID(),
		span.Start.Format("15:04:05.000000"),
		span.Duration,
	)
	for _, p := range span.Parents {
		fmt.Fprintf(r.out, "  parent=%s\n", p)
	}
	for _, f := range span.Follows {
		fmt.Fprintf(r.out, "  followsFrom=%s\n", f)
	}
	for _, t := range span.Tags {
		fmt.Fprintf(r.out, "  tag %s=%s\n", t.Key, t.Value)
	}
	for _, l := range span.Logs {
		fmt.Fprintf(r.out, "  log @%d %v\n", l.TimestampMicros, l.Fields)
	}
}

// FailureCount is always zero; the console never fails.
func (r *Console) FailureCount() int64 { return 0 }

// Close is a no-op.
func (r *Console) Close() error { return nil }
