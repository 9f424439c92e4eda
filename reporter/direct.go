package reporter

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/meterwave/tracing-go/application"
	"github.com/meterwave/tracing-go/internal/logging"
	"github.com/meterwave/tracing-go/internal/selfmetrics"
	"github.com/meterwave/tracing-go/sender"
	"github.com/meterwave/tracing-go/trace"
)

// Direct synchronously forwards every span to the sender. Sender failures
// are logged and dropped; the caller never sees them.
type Direct struct {
	sender   sender.Sender
	source   string
	logger   *zap.Logger
	failures atomic.Int64
}

// Option configures a reporter.
type Option func(*options)

type options struct {
	logger *zap.Logger
	source string
}

// WithLogger routes the reporter's failure logs through the given logger.
// The logger is wrapped with the SDK's rate limit.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logging.Sampled(logger) }
}

// WithSource overrides the reporting source sent with every span. Defaults
// to the host name.
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}

func applyOptions(opts []Option, defaultSource func() string) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewDefault()
	}
	if o.source == "" {
		o.source = defaultSource()
	}
	return o
}

func defaultSource() string { return application.Source() }

// NewDirect creates a synchronous reporter over the given sender.
func NewDirect(s sender.Sender, opts ...Option) *Direct {
	o := applyOptions(opts, defaultSource)
	return &Direct{sender: s, source: o.source, logger: o.logger}
}

// Report sends the span, swallowing transport failures.
func (r *Direct) Report(span trace.RawSpan) {
	err := r.sender.SendSpan(
		span.Operation,
		span.Start.UnixMilli(),
		span.Duration.Milliseconds(),
		r.source,
		span.Context.TraceID(),
		span.Context.SpanID(),
		span.Parents,
		span.Follows,
		span.Tags,
		span.Logs,
	)
	if err != nil {
		r.failures.Add(1)
		selfmetrics.SpansDropped.WithLabelValues(selfmetrics.ReasonSendFailure).Inc()
		r.logger.Warn("failed to send span",
			zap.String("operation", span.Operation),
			zap.Stringer("trace_id", span.Context.TraceID()),
			zap.Error(err),
		)
		return
	}
	selfmetrics.SpansReported.Inc()
}

// FailureCount returns the number of spans the sender refused.
func (r *Direct) FailureCount() int64 {
	return r.failures.Load()
}

// Sender exposes the underlying sender for derived-metric emission.
func (r *Direct) Sender() sender.Sender { return r.sender }

// Source returns the reporting source.
func (r *Direct) Source() string { return r.source }

// Close closes the underlying sender.
func (r *Direct) Close() error {
	return r.sender.Close()
}
