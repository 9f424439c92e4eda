package tracing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meterwave/tracing-go/application"
	"github.com/meterwave/tracing-go/propagation"
	"github.com/meterwave/tracing-go/reporter"
	"github.com/meterwave/tracing-go/sampler"
)

func TestNewValidation(t *testing.T) {
	rs := newRecordingSender()
	rep := reporter.NewDirect(rs, reporter.WithLogger(zap.NewNop()))
	tags, err := application.New("app", "svc")
	require.NoError(t, err)

	_, err = New(Config{Tags: tags})
	require.Error(t, err, "reporter is required")

	_, err = New(Config{Reporter: rep})
	require.Error(t, err, "application identity is required")

	_, err = New(Config{Tags: application.Tags{Application: "app"}, Reporter: rep})
	require.Error(t, err, "service is required")

	tracer, err := New(Config{Tags: tags, Reporter: rep, Logger: zap.NewNop()})
	require.NoError(t, err)
	require.NoError(t, tracer.Close())
	require.NoError(t, tracer.Close(), "close is idempotent")
}

func TestRootIndependenceWithIgnoreActiveSpan(t *testing.T) {
	tracer, _ := newTestTracer(t)

	active := tracer.StartSpan("active")
	ctx := ContextWithSpan(context.Background(), active)

	adopted := tracer.StartSpan("adopted", WithActiveSpanFrom(ctx))
	assert.Equal(t, active.Context().TraceID(), adopted.Context().TraceID())

	root := tracer.StartSpan("independent", WithActiveSpanFrom(ctx), IgnoreActiveSpan())
	assert.NotEqual(t, active.Context().TraceID(), root.Context().TraceID())
}

func TestExplicitReferenceBeatsActiveSpan(t *testing.T) {
	tracer, _ := newTestTracer(t)

	active := tracer.StartSpan("active")
	ctx := ContextWithSpan(context.Background(), active)
	parent := tracer.StartSpan("parent")

	span := tracer.StartSpan("child", WithActiveSpanFrom(ctx), ChildOf(parent.Context()))
	assert.Equal(t, parent.Context().TraceID(), span.Context().TraceID())
}

func TestStartSpanFromContext(t *testing.T) {
	tracer, _ := newTestTracer(t)

	parent, ctx := StartSpanFromContext(context.Background(), tracer, "parent")
	assert.Same(t, parent, SpanFromContext(ctx))

	child, childCtx := StartSpanFromContext(ctx, tracer, "child")
	assert.Equal(t, parent.Context().TraceID(), child.Context().TraceID())
	assert.Same(t, child, SpanFromContext(childCtx))
	assert.Same(t, parent, SpanFromContext(ctx), "outer context is untouched")
}

func TestActiveSpanDoesNotLeakAcrossBranches(t *testing.T) {
	tracer, _ := newTestTracer(t)
	root, ctx := StartSpanFromContext(context.Background(), tracer, "root")

	var wg sync.WaitGroup
	spans := make([]*Span, 8)
	for i := range spans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each branch activates its own child; siblings never observe it.
			child, branchCtx := StartSpanFromContext(ctx, tracer, "branch")
			spans[i] = child
			assert.Same(t, child, SpanFromContext(branchCtx))
			assert.Same(t, root, SpanFromContext(ctx))
		}(i)
	}
	wg.Wait()

	for _, child := range spans {
		assert.Equal(t, root.Context().TraceID(), child.Context().TraceID())
	}
}

func TestDerivedMetricsEmitted(t *testing.T) {
	tracer, rs := newTestTracer(t)

	span := tracer.StartSpan("place-order", StartTime(time.Now().Add(-20*time.Millisecond)))
	span.Finish()

	prefix := "shop.checkout.place-order"
	assert.Equal(t, float64(1), rs.metricValue(prefix+".invocation.count"))
	assert.Equal(t, float64(0), rs.metricValue(prefix+".error.count"))
	assert.GreaterOrEqual(t, rs.metricValue(prefix+".total_time.millis"), float64(20))
	assert.Contains(t, rs.distributions, prefix+".duration.micros")

	tags := rs.tagsOf(prefix + ".invocation.count")
	require.NotNil(t, tags)
	assert.Equal(t, "shop", tags[application.ApplicationKey])
	assert.Equal(t, "checkout", tags[application.ServiceKey])
	assert.Equal(t, "place-order", tags["operationName"])
	assert.Equal(t, application.NoneValue, tags[ComponentTagKey])
}

func TestMetricDerivationIndependentOfSampling(t *testing.T) {
	tracer, rs := newTestTracer(t, sampler.NewConstant(false))

	span := tracer.StartSpan("op")
	span.Finish()

	assert.Equal(t, 0, rs.sentSpanCount(), "unsampled span never reaches the trace sender")
	assert.Equal(t, float64(1), rs.metricValue("shop.checkout.op.invocation.count"),
		"derived metrics are emitted regardless of the sampling decision")
	assert.Equal(t, int64(1), tracer.DiscardedCount())
}

func TestRateZeroWithErrorTagStillDelivers(t *testing.T) {
	rate, err := sampler.NewRate(0)
	require.NoError(t, err)
	tracer, rs := newTestTracer(t, rate)

	span := tracer.StartSpan("op", StartTime(time.Now().Add(-10*time.Millisecond)))
	span.SetTag(ErrorTagKey, true)
	span.Finish()

	assert.Equal(t, 1, rs.sentSpanCount(),
		"error forcing overrides a zero base sampling rate")
	assert.GreaterOrEqual(t, rs.metricValue("shop.checkout.op.invocation.count"), float64(1))
	assert.GreaterOrEqual(t, rs.metricValue("shop.checkout.op.error.count"), float64(1))

	tags := rs.tagsOf("shop.checkout.op.duration.micros")
	require.NotNil(t, tags)
	assert.Equal(t, "true", tags[ErrorTagKey], "error spans tag their duration histogram")
}

func TestCustomRedMetricTags(t *testing.T) {
	rs := newRecordingSender()
	tags, err := application.New("shop", "checkout")
	require.NoError(t, err)
	tracer, err := New(Config{
		Tags:             tags,
		Reporter:         reporter.NewDirect(rs, reporter.WithSource("test"), reporter.WithLogger(zap.NewNop())),
		RedMetricTagKeys: []string{"tenant"},
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)

	span := tracer.StartSpan("op", WithTag(ComponentTagKey, "db"))
	span.SetTag("tenant", "acme")
	span.SetTag("tenant", "ignored-second-value")
	span.Finish()

	pt := rs.tagsOf("shop.checkout.op.invocation.count")
	require.NotNil(t, pt)
	assert.Equal(t, "acme", pt["tenant"], "first value wins for multi-valued custom tags")
	assert.Equal(t, "db", pt[ComponentTagKey])
}

func TestSingleValuedOverridesReachMetrics(t *testing.T) {
	tracer, rs := newTestTracer(t)

	span := tracer.StartSpan("op", WithTag(application.ShardKey, "shard-7"))
	span.Finish()

	pt := rs.tagsOf("shop.checkout.op.invocation.count")
	require.NotNil(t, pt)
	assert.Equal(t, "shard-7", pt[application.ShardKey])
	assert.Equal(t, application.NoneValue, pt[application.ClusterKey])
}

func TestDisableDerivedMetrics(t *testing.T) {
	rs := newRecordingSender()
	tags, err := application.New("shop", "checkout")
	require.NoError(t, err)
	tracer, err := New(Config{
		Tags:                  tags,
		Reporter:              reporter.NewDirect(rs, reporter.WithSource("test"), reporter.WithLogger(zap.NewNop())),
		DisableDerivedMetrics: true,
		Logger:                zap.NewNop(),
	})
	require.NoError(t, err)

	tracer.StartSpan("op").Finish()

	assert.Equal(t, 1, rs.sentSpanCount())
	assert.Empty(t, rs.metrics)
}

func TestInjectExtractRegistry(t *testing.T) {
	tracer, _ := newTestTracer(t)
	sc := tracer.StartSpan("op").Context()

	carrier := propagation.TextMapCarrier{}
	require.NoError(t, tracer.Inject(sc, propagation.TextMap, carrier))

	extracted, err := tracer.Extract(propagation.TextMap, carrier)
	require.NoError(t, err)
	require.NotNil(t, extracted)
	assert.Equal(t, sc.TraceID(), extracted.TraceID())

	err = tracer.Inject(sc, "bogus-format", carrier)
	assert.ErrorIs(t, err, propagation.ErrUnsupportedFormat)
	_, err = tracer.Extract("bogus-format", carrier)
	assert.ErrorIs(t, err, propagation.ErrUnsupportedFormat)
}

func TestCustomPropagatorRegistration(t *testing.T) {
	rs := newRecordingSender()
	tags, err := application.New("shop", "checkout")
	require.NoError(t, err)
	tracer, err := New(Config{
		Tags:     tags,
		Reporter: reporter.NewDirect(rs, reporter.WithSource("test"), reporter.WithLogger(zap.NewNop())),
		Logger:   zap.NewNop(),
		Propagators: map[interface{}]propagation.Propagator{
			propagation.HTTPHeaders: propagation.NewJaegerPropagator(),
		},
	})
	require.NoError(t, err)

	sc := tracer.StartSpan("op").Context()
	carrier := propagation.TextMapCarrier{}
	require.NoError(t, tracer.Inject(sc, propagation.HTTPHeaders, carrier))
	assert.Contains(t, carrier, "uber-trace-id")
}

func TestExtractedContextAsParent(t *testing.T) {
	tracer, rs := newTestTracer(t)

	remote := tracer.StartSpan("remote")
	carrier := propagation.TextMapCarrier{}
	require.NoError(t, tracer.Inject(remote.Context(), propagation.TextMap, carrier))

	extracted, err := tracer.Extract(propagation.TextMap, carrier)
	require.NoError(t, err)
	require.NotNil(t, extracted)

	local := tracer.StartSpan("local", ChildOf(*extracted))
	assert.Equal(t, remote.Context().TraceID(), local.Context().TraceID())
	local.Finish()
	assert.Equal(t, 1, rs.sentSpanCount())
}
