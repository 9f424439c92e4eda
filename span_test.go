package tracing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meterwave/tracing-go/application"
	"github.com/meterwave/tracing-go/reporter"
	"github.com/meterwave/tracing-go/sampler"
	"github.com/meterwave/tracing-go/sender"
	"github.com/meterwave/tracing-go/trace"
)

// recordingSender captures everything the tracer emits.
type recordingSender struct {
	mu            sync.Mutex
	spanOps       []string
	metrics       map[string]float64
	metricTags    map[string]map[string]string
	distributions []string
	fail          bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		metrics:    make(map[string]float64),
		metricTags: make(map[string]map[string]string),
	}
}

func (r *recordingSender) SendSpan(operation string, _, _ int64, _ string,
	_, _ trace.ID, _, _ []trace.ID, _ []trace.Tag, _ []trace.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("down")
	}
	r.spanOps = append(r.spanOps, operation)
	return nil
}

func (r *recordingSender) SendMetric(name string, value float64, _ int64, _ string, tags map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("down")
	}
	r.metrics[name] += value
	r.metricTags[name] = tags
	return nil
}

func (r *recordingSender) SendDistribution(name string, _ []sender.Centroid, _ int64, _ string, tags map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("down")
	}
	r.distributions = append(r.distributions, name)
	r.metricTags[name] = tags
	return nil
}

func (r *recordingSender) FailureCount() int64 { return 0 }
func (r *recordingSender) Close() error        { return nil }

func (r *recordingSender) sentSpanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spanOps)
}

func (r *recordingSender) metricValue(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics[name]
}

func (r *recordingSender) tagsOf(name string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metricTags[name]
}

func newTestTracer(t *testing.T, samplers ...sampler.Sampler) (*Tracer, *recordingSender) {
	t.Helper()
	rs := newRecordingSender()
	tags, err := application.New("shop", "checkout")
	require.NoError(t, err)
	tracer, err := New(Config{
		Tags:     tags,
		Reporter: reporter.NewDirect(rs, reporter.WithSource("test"), reporter.WithLogger(zap.NewNop())),
		Samplers: samplers,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	return tracer, rs
}

func TestTraceIDInheritance(t *testing.T) {
	tracer, _ := newTestTracer(t)

	parent := tracer.StartSpan("parent")
	child := tracer.StartSpan("child", ChildOf(parent.Context()))

	assert.Equal(t, parent.Context().TraceID(), child.Context().TraceID())
	assert.NotEqual(t, parent.Context().SpanID(), child.Context().SpanID())
}

func TestFollowsFromInheritance(t *testing.T) {
	tracer, _ := newTestTracer(t)

	pred := tracer.StartSpan("producer")
	follower := tracer.StartSpan("consumer", FollowsFrom(pred.Context()))

	assert.Equal(t, pred.Context().TraceID(), follower.Context().TraceID())
}

func TestChildOfWinsOverFollowsFrom(t *testing.T) {
	tracer, _ := newTestTracer(t)

	a := tracer.StartSpan("a")
	b := tracer.StartSpan("b")
	span := tracer.StartSpan("c", FollowsFrom(b.Context()), ChildOf(a.Context()))

	assert.Equal(t, a.Context().TraceID(), span.Context().TraceID())
}

func TestBaggageMergeFirstWriteWins(t *testing.T) {
	tracer, _ := newTestTracer(t)

	first := tracer.StartSpan("first").SetBaggageItem("region", "us-east")
	second := tracer.StartSpan("second").SetBaggageItem("region", "eu-west").
		SetBaggageItem("tier", "gold")

	child := tracer.StartSpan("child",
		ChildOf(first.Context()), ChildOf(second.Context()))

	// The first reference's value is retained; later references only
	// contribute keys that are still absent.
	assert.Equal(t, "us-east", child.BaggageItem("region"))
	assert.Equal(t, "gold", child.BaggageItem("tier"))
}

func TestBaggageInheritedAcrossReferenceKinds(t *testing.T) {
	tracer, _ := newTestTracer(t)

	parent := tracer.StartSpan("parent").SetBaggageItem("k", "parent")
	follows := tracer.StartSpan("follows").SetBaggageItem("k", "follows").
		SetBaggageItem("only-follows", "x")

	child := tracer.StartSpan("child",
		ChildOf(parent.Context()), FollowsFrom(follows.Context()))

	assert.Equal(t, "parent", child.BaggageItem("k"), "parents merge before follows")
	assert.Equal(t, "x", child.BaggageItem("only-follows"))
}

func TestSamplingDecisionInherited(t *testing.T) {
	tracer, _ := newTestTracer(t, sampler.NewConstant(false))

	parent := tracer.StartSpan("parent")
	decision, ok := parent.Context().SamplingDecision()
	require.True(t, ok)
	require.False(t, decision)

	child := tracer.StartSpan("child", ChildOf(parent.Context()))
	decision, ok = child.Context().SamplingDecision()
	require.True(t, ok)
	assert.False(t, decision, "children inherit the parent decision verbatim")
}

func TestRootSpanHeadSampled(t *testing.T) {
	tracer, _ := newTestTracer(t, sampler.NewConstant(true))

	span := tracer.StartSpan("root")
	decision, ok := span.Context().SamplingDecision()
	require.True(t, ok, "head decision is baked in before the span is returned")
	assert.True(t, decision)
}

func TestNoSamplersFailOpen(t *testing.T) {
	tracer, rs := newTestTracer(t)

	span := tracer.StartSpan("root")
	decision, ok := span.Context().SamplingDecision()
	require.True(t, ok)
	assert.True(t, decision)

	span.Finish()
	assert.Equal(t, 1, rs.sentSpanCount())
}

func TestLateSamplersLeaveRootUndecided(t *testing.T) {
	tracer, rs := newTestTracer(t, sampler.NewDuration(10))

	span := tracer.StartSpan("slow", StartTime(time.Now().Add(-50*time.Millisecond)))
	assert.False(t, span.Context().IsSampled(),
		"duration-only policies defer the decision to finish time")

	span.Finish()
	decision, ok := span.Context().SamplingDecision()
	require.True(t, ok)
	assert.True(t, decision)
	assert.Equal(t, 1, rs.sentSpanCount())
}

func TestDurationSamplerDiscardsFastSpans(t *testing.T) {
	tracer, rs := newTestTracer(t, sampler.NewDuration(10_000))

	span := tracer.StartSpan("fast")
	span.Finish()

	assert.Equal(t, 0, rs.sentSpanCount())
	assert.Equal(t, int64(1), tracer.DiscardedCount())
}

func TestSamplingDecisionMonotonicity(t *testing.T) {
	tracer, _ := newTestTracer(t, sampler.NewConstant(true))

	span := tracer.StartSpan("op")
	decision, _ := span.Context().SamplingDecision()
	require.True(t, decision)

	span.Finish()
	decision, ok := span.Context().SamplingDecision()
	require.True(t, ok)
	assert.True(t, decision, "a true decision never flips back")
}

func TestForcedSamplingByErrorTag(t *testing.T) {
	tracer, _ := newTestTracer(t, sampler.NewConstant(false))

	span := tracer.StartSpan("op")
	span.SetTag(ErrorTagKey, true)

	// Forced before Finish is ever called.
	decision, ok := span.Context().SamplingDecision()
	require.True(t, ok)
	assert.True(t, decision)
	assert.True(t, span.IsError())
}

func TestForcedSamplingByPriorityTag(t *testing.T) {
	tracer, rs := newTestTracer(t, sampler.NewConstant(false))

	span := tracer.StartSpan("op")
	span.SetTag(SamplingPriorityTagKey, 1)

	decision, ok := span.Context().SamplingDecision()
	require.True(t, ok)
	assert.True(t, decision)
	assert.False(t, span.IsError(), "priority does not mark the span failed")

	span.Finish()
	assert.Equal(t, 1, rs.sentSpanCount())
}

func TestZeroPriorityDoesNotForce(t *testing.T) {
	tracer, rs := newTestTracer(t, sampler.NewConstant(false))

	span := tracer.StartSpan("op")
	span.SetTag(SamplingPriorityTagKey, 0)
	span.Finish()

	assert.Equal(t, 0, rs.sentSpanCount())
}

func TestMultiValuedTags(t *testing.T) {
	tracer, _ := newTestTracer(t)

	span := tracer.StartSpan("op")
	span.SetTag("endpoint", "/a")
	span.SetTag("endpoint", "/b")
	assert.Equal(t, []string{"/a", "/b"}, span.TagValues("endpoint"))

	span.SetTag(application.ApplicationKey, "other-app")
	span.SetTag(application.ApplicationKey, "final-app")
	assert.Equal(t, []string{"final-app"}, span.TagValues(application.ApplicationKey),
		"single-valued keys keep only the latest value")
}

func TestGlobalTagsAppliedBeforeSpanTags(t *testing.T) {
	rs := newRecordingSender()
	tags, err := application.New("shop", "checkout")
	require.NoError(t, err)
	tracer, err := New(Config{
		Tags:       tags,
		Reporter:   reporter.NewDirect(rs, reporter.WithSource("test"), reporter.WithLogger(zap.NewNop())),
		GlobalTags: []trace.Tag{{Key: "env", Value: "prod"}},
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)

	span := tracer.StartSpan("op", WithTag(application.ClusterKey, "us-east-1"))
	assert.Equal(t, []string{"prod"}, span.TagValues("env"))
	assert.Equal(t, []string{"us-east-1"}, span.TagValues(application.ClusterKey),
		"per-span single-valued tags override the tracer defaults")
	assert.Equal(t, []string{"shop"}, span.TagValues(application.ApplicationKey))
}

func TestIdempotentFinish(t *testing.T) {
	tracer, rs := newTestTracer(t)

	start := time.Now().Add(-time.Second)
	span := tracer.StartSpan("op", StartTime(start))

	first := start.Add(100 * time.Millisecond)
	span.FinishWithOptions(FinishOptions{FinishTime: first})
	duration := span.Duration()
	span.FinishWithOptions(FinishOptions{FinishTime: start.Add(5 * time.Second)})
	span.Finish()

	assert.Equal(t, 1, rs.sentSpanCount(), "only the first finish reports")
	assert.Equal(t, duration, span.Duration(), "only the first finish sets the duration")
	assert.Equal(t, 100*time.Millisecond, duration)
}

func TestConcurrentFinishReportsOnce(t *testing.T) {
	tracer, rs := newTestTracer(t)
	span := tracer.StartSpan("op")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			span.Finish()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rs.sentSpanCount())
}

func TestConcurrentSpanMutation(t *testing.T) {
	tracer, _ := newTestTracer(t)
	span := tracer.StartSpan("op")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				span.SetTag("k", "v")
				span.Log(map[string]string{"event": "tick"})
				span.SetBaggageItem("b", "1")
				_ = span.Context()
				_ = span.TagValues("k")
			}
		}()
	}
	wg.Wait()
	span.Finish()

	assert.Len(t, span.TagValues("k"), 400)
}

func TestSetOperationName(t *testing.T) {
	tracer, rs := newTestTracer(t)

	span := tracer.StartSpan("old")
	span.SetOperationName("new")
	assert.Equal(t, "new", span.Operation())
	span.Finish()

	require.Equal(t, 1, rs.sentSpanCount())
	assert.Equal(t, "new", rs.spanOps[0])
}

func TestSpanLogs(t *testing.T) {
	tracer, _ := newTestTracer(t)

	span := tracer.StartSpan("op")
	span.Log(map[string]string{"event": "cache-miss"})
	span.Log(map[string]string{"event": "retry", "attempt": "2"})

	span.mu.Lock()
	logs := append([]trace.Log(nil), span.logs...)
	span.mu.Unlock()

	require.Len(t, logs, 2)
	assert.Equal(t, "cache-miss", logs[0].Fields["event"])
	assert.NotZero(t, logs[0].TimestampMicros)
}

func TestStrings(t *testing.T) {
	// Sanity-check the tag value conversions used by SetTag.
	tracer, _ := newTestTracer(t)
	span := tracer.StartSpan("op")
	span.SetTag("count", 42)
	span.SetTag("ratio", 0.5)
	span.SetTag("ok", true)

	assert.Equal(t, []string{"42"}, span.TagValues("count"))
	assert.Equal(t, []string{"0.5"}, span.TagValues("ratio"))
	assert.Equal(t, []string{"true"}, span.TagValues("ok"))
}
