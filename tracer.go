package tracing

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/meterwave/tracing-go/application"
	"github.com/meterwave/tracing-go/heartbeat"
	"github.com/meterwave/tracing-go/internal/logging"
	"github.com/meterwave/tracing-go/internal/selfmetrics"
	"github.com/meterwave/tracing-go/propagation"
	"github.com/meterwave/tracing-go/reporter"
	"github.com/meterwave/tracing-go/sampler"
	"github.com/meterwave/tracing-go/sender"
	"github.com/meterwave/tracing-go/trace"
)

// Tag keys with SDK-level meaning.
const (
	// ErrorTagKey marks a span as failed. Setting it to true forces the
	// span to be sampled.
	ErrorTagKey = "error"

	// SamplingPriorityTagKey, when set to a number greater than zero,
	// forces the span to be sampled regardless of the configured samplers.
	SamplingPriorityTagKey = "sampling.priority"

	// ComponentTagKey names the instrumented component on a span.
	ComponentTagKey = application.ComponentKey
)

// Config configures a Tracer. Tags and Reporter are required.
type Config struct {
	// Tags identify the instrumented application.
	Tags application.Tags

	// Reporter receives finished, sampled spans.
	Reporter reporter.Reporter

	// Samplers is the head/late sampling policy. Empty means every trace
	// is sampled.
	Samplers []sampler.Sampler

	// GlobalTags are stamped on every span, ahead of per-span tags.
	GlobalTags []trace.Tag

	// RedMetricTagKeys lists span tag keys whose values are added to the
	// derived RED metrics and propagated to the component heartbeat.
	RedMetricTagKeys []string

	// DisableDerivedMetrics turns off RED metric and heartbeat emission
	// even when the reporter exposes a sender.
	DisableDerivedMetrics bool

	// HeartbeatInterval overrides how often component heartbeats are sent.
	HeartbeatInterval time.Duration

	// Logger receives the SDK's sampled warning logs. Defaults to the
	// SDK's own stderr logger.
	Logger *zap.Logger

	// Propagators overrides or extends the built-in propagator registry,
	// keyed by format token.
	Propagators map[interface{}]propagation.Propagator
}

// Tracer builds spans, owns the sampling policy, derives RED metrics from
// finished spans, and hands sampled spans to its reporter. Safe for
// concurrent use.
type Tracer struct {
	tags        application.Tags
	source      string
	reporter    reporter.Reporter
	samplers    *sampler.Composite
	numSamplers int
	globalTags  []trace.Tag
	redTagKeys  []string
	logger      *zap.Logger

	metricsSender sender.Sender
	heartbeats    *heartbeat.Service

	propagators map[interface{}]propagation.Propagator

	discarded atomic.Int64
	closed    atomic.Bool
}

// New creates a Tracer. Configuration problems fail here, never later.
func New(cfg Config) (*Tracer, error) {
	if cfg.Reporter == nil {
		return nil, fmt.Errorf("tracing: a reporter is required")
	}
	if cfg.Tags.Application == "" || cfg.Tags.Service == "" {
		return nil, fmt.Errorf("tracing: application and service tags are required")
	}
	if cfg.Tags.Cluster == "" {
		cfg.Tags.Cluster = application.NoneValue
	}
	if cfg.Tags.Shard == "" {
		cfg.Tags.Shard = application.NoneValue
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault()
	} else {
		logger = logging.Sampled(logger)
	}

	t := &Tracer{
		tags:        cfg.Tags,
		source:      application.Source(),
		reporter:    cfg.Reporter,
		samplers:    sampler.NewComposite(cfg.Samplers...),
		numSamplers: len(cfg.Samplers),
		redTagKeys:  cfg.RedMetricTagKeys,
		logger:      logger,
		propagators: map[interface{}]propagation.Propagator{
			propagation.TextMap:     propagation.NewTextMapPropagator(),
			propagation.HTTPHeaders: propagation.NewTextMapPropagator(),
		},
	}
	for format, p := range cfg.Propagators {
		t.propagators[format] = p
	}

	// Application identity leads the global tags so per-span values can
	// still override the single-valued keys.
	t.globalTags = append(t.globalTags,
		trace.Tag{Key: application.ApplicationKey, Value: cfg.Tags.Application},
		trace.Tag{Key: application.ServiceKey, Value: cfg.Tags.Service},
		trace.Tag{Key: application.ClusterKey, Value: cfg.Tags.Cluster},
		trace.Tag{Key: application.ShardKey, Value: cfg.Tags.Shard},
	)
	for k, v := range cfg.Tags.Custom {
		t.globalTags = append(t.globalTags, trace.Tag{Key: k, Value: v})
	}
	t.globalTags = append(t.globalTags, cfg.GlobalTags...)

	if !cfg.DisableDerivedMetrics {
		if s, ok := reporter.SenderOf(cfg.Reporter); ok {
			t.metricsSender = s
			t.heartbeats = heartbeat.NewService(
				s, t.source, cfg.Tags.Map(), cfg.HeartbeatInterval, logger)
		}
	}
	return t, nil
}

// Inject encodes a span context into the carrier using the propagator
// registered for format.
func (t *Tracer) Inject(sc trace.SpanContext, format, carrier interface{}) error {
	p, ok := t.propagators[format]
	if !ok {
		return fmt.Errorf("%w: %v", propagation.ErrUnsupportedFormat, format)
	}
	return p.Inject(sc, carrier)
}

// Extract decodes a span context from the carrier. It returns (nil, nil)
// when the carrier holds no usable context.
func (t *Tracer) Extract(format, carrier interface{}) (*trace.SpanContext, error) {
	p, ok := t.propagators[format]
	if !ok {
		return nil, fmt.Errorf("%w: %v", propagation.ErrUnsupportedFormat, format)
	}
	return p.Extract(carrier)
}

// DiscardedCount returns how many finished spans were dropped as unsampled.
func (t *Tracer) DiscardedCount() int64 {
	return t.discarded.Load()
}

// Close stops the heartbeat service and closes the reporter. Safe to call
// once; later calls are no-ops.
func (t *Tracer) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if t.heartbeats != nil {
		t.heartbeats.Stop()
	}
	return t.reporter.Close()
}

// headDecision evaluates the early-phase samplers for a fresh trace root.
// decided is false when the policy defers to the late phase.
func (t *Tracer) headDecision(operation string, traceID uint64) (sampled, decided bool) {
	sampled, decided = t.samplers.Evaluate(operation, traceID, 0, true)
	if decided {
		return sampled, true
	}
	if t.numSamplers == 0 {
		// No sampling policy at all: fail open.
		return true, true
	}
	return false, false
}

// lateDecision evaluates the late-phase samplers once the duration is known.
func (t *Tracer) lateDecision(operation string, traceID uint64, duration time.Duration) bool {
	sampled, decided := t.samplers.Evaluate(operation, traceID, duration, false)
	if decided {
		return sampled
	}
	return t.numSamplers == 0
}

// finishSpan runs the reporting side of Finish: the span goes to the
// reporter only when sampled, while RED metrics are derived regardless so
// operators keep request/error/duration visibility for unsampled traffic.
func (t *Tracer) finishSpan(raw trace.RawSpan, isError bool) {
	decision, ok := raw.Context.SamplingDecision()
	if !ok || decision {
		t.reporter.Report(raw)
	} else {
		t.discarded.Add(1)
		selfmetrics.SpansDropped.WithLabelValues(selfmetrics.ReasonUnsampled).Inc()
	}

	if t.metricsSender != nil {
		t.reportDerived(raw, isError)
	}
}

// reportDerived emits the RED metrics for one finished span and keeps the
// component heartbeat registry current.
func (t *Tracer) reportDerived(raw trace.RawSpan, isError bool) {
	app := t.singleValued(raw, application.ApplicationKey, t.tags.Application)
	service := t.singleValued(raw, application.ServiceKey, t.tags.Service)

	component := application.NoneValue
	if v, ok := raw.FirstTagValue(ComponentTagKey); ok {
		component = v
	}

	pointTags := map[string]string{
		application.ApplicationKey: app,
		application.ServiceKey:     service,
		application.ClusterKey:     t.singleValued(raw, application.ClusterKey, t.tags.Cluster),
		application.ShardKey:       t.singleValued(raw, application.ShardKey, t.tags.Shard),
		"operationName":            raw.Operation,
		ComponentTagKey:            component,
	}
	customMatched := make(map[string]string)
	for _, key := range t.redTagKeys {
		if v, ok := raw.FirstTagValue(key); ok {
			pointTags[key] = v
			customMatched[key] = v
		}
	}

	prefix := app + "." + service + "." + raw.Operation
	ts := raw.Start.Add(raw.Duration).UnixMilli()
	durationMicros := trace.DurationMicros(raw.Duration)

	t.sendMetric(prefix+".invocation.count", 1, ts, pointTags)
	if isError {
		t.sendMetric(prefix+".error.count", 1, ts, pointTags)
	}
	t.sendMetric(prefix+".total_time.millis",
		float64(trace.MillisFromMicros(durationMicros)), ts, pointTags)

	histTags := pointTags
	if isError {
		histTags = make(map[string]string, len(pointTags)+1)
		for k, v := range pointTags {
			histTags[k] = v
		}
		histTags[ErrorTagKey] = "true"
	}
	err := t.metricsSender.SendDistribution(prefix+".duration.micros",
		[]sender.Centroid{{Value: float64(durationMicros), Count: 1}}, ts, t.source, histTags)
	if err != nil {
		t.logger.Warn("failed to send duration distribution",
			zap.String("operation", raw.Operation), zap.Error(err))
	}

	if t.heartbeats != nil {
		hb := map[string]string{ComponentTagKey: component}
		t.heartbeats.Register(hb)
		if len(customMatched) > 0 {
			customMatched[ComponentTagKey] = component
			t.heartbeats.Register(customMatched)
		}
	}
}

func (t *Tracer) sendMetric(name string, value float64, ts int64, tags map[string]string) {
	if err := t.metricsSender.SendMetric(name, value, ts, t.source, tags); err != nil {
		t.logger.Warn("failed to send derived metric",
			zap.String("metric", name), zap.Error(err))
		return
	}
	selfmetrics.MetricPoints.Inc()
}

// singleValued resolves one of the single-valued identity keys: the span's
// value wins over the tracer default.
func (t *Tracer) singleValued(raw trace.RawSpan, key, fallback string) string {
	if v, ok := raw.FirstTagValue(key); ok {
		return v
	}
	return fallback
}
