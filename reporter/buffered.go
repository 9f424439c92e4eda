package reporter

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/meterwave/tracing-go/internal/selfmetrics"
	"github.com/meterwave/tracing-go/sender"
	"github.com/meterwave/tracing-go/trace"
)

const (
	// DefaultQueueSize bounds the buffered reporter's memory.
	DefaultQueueSize = 50000

	// DefaultCloseTimeout bounds how long Close waits for the drain loop.
	DefaultCloseTimeout = 5 * time.Second
)

// Buffered decouples finishing spans from delivery: Report is a non-blocking
// enqueue onto a bounded queue and a single background worker drains it to
// the delegate. Under overload spans are dropped, never blocked on.
type Buffered struct {
	delegate Reporter
	logger   *zap.Logger
	timeout  time.Duration

	queue chan trace.RawSpan
	done  chan struct{}

	// mu serializes enqueue attempts against closing the queue channel.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// BufferedOption configures a buffered reporter.
type BufferedOption func(*bufferedOptions)

type bufferedOptions struct {
	size    int
	timeout time.Duration
	opts    []Option
}

// WithQueueSize overrides the queue capacity.
func WithQueueSize(size int) BufferedOption {
	return func(o *bufferedOptions) { o.size = size }
}

// WithCloseTimeout overrides how long Close waits for the queue to drain.
func WithCloseTimeout(timeout time.Duration) BufferedOption {
	return func(o *bufferedOptions) { o.timeout = timeout }
}

// WithReporterOptions forwards options to the buffered reporter's logging.
func WithReporterOptions(opts ...Option) BufferedOption {
	return func(o *bufferedOptions) { o.opts = append(o.opts, opts...) }
}

// NewBuffered creates a buffered reporter draining into delegate and starts
// its background worker.
func NewBuffered(delegate Reporter, opts ...BufferedOption) (*Buffered, error) {
	o := bufferedOptions{size: DefaultQueueSize, timeout: DefaultCloseTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.size <= 0 {
		return nil, fmt.Errorf("reporter: queue size must be positive, got %d", o.size)
	}
	if o.timeout <= 0 {
		return nil, fmt.Errorf("reporter: close timeout must be positive, got %v", o.timeout)
	}

	ro := applyOptions(o.opts, defaultSource)
	r := &Buffered{
		delegate: delegate,
		logger:   ro.logger,
		timeout:  o.timeout,
		queue:    make(chan trace.RawSpan, o.size),
		done:     make(chan struct{}),
	}
	go r.drain()
	return r, nil
}

// NewBufferedSender is a convenience constructor wiring a direct reporter
// over the sender behind the buffer.
func NewBufferedSender(s sender.Sender, opts ...BufferedOption) (*Buffered, error) {
	var o bufferedOptions
	for _, opt := range opts {
		opt(&o)
	}
	return NewBuffered(NewDirect(s, o.opts...), opts...)
}

// Report enqueues the span without blocking. A full queue drops the span.
func (r *Buffered) Report(span trace.RawSpan) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(span)
		return
	}
	select {
	case r.queue <- span:
		selfmetrics.QueueDepth.Set(float64(len(r.queue)))
	default:
		r.drop(span)
	}
}

func (r *Buffered) drop(span trace.RawSpan) {
	r.dropped.Add(1)
	selfmetrics.SpansDropped.WithLabelValues(selfmetrics.ReasonQueueFull).Inc()
	r.logger.Warn("span queue full, dropping span",
		zap.String("operation", span.Operation),
		zap.Stringer("trace_id", span.Context.TraceID()),
	)
}

// DroppedCount returns how many spans were dropped on a full queue.
func (r *Buffered) DroppedCount() int64 {
	return r.dropped.Load()
}

// FailureCount returns queue drops plus the delegate's failures.
func (r *Buffered) FailureCount() int64 {
	return r.dropped.Load() + r.delegate.FailureCount()
}

// Sender exposes the delegate's sender, if it has one.
func (r *Buffered) Sender() sender.Sender {
	if s, ok := SenderOf(r.delegate); ok {
		return s
	}
	return nil
}

// Close stops accepting spans, waits up to the close timeout for the worker
// to drain the queue, then closes the delegate. It never blocks forever.
func (r *Buffered) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-time.After(r.timeout):
		r.logger.Warn("timed out waiting for span queue to drain",
			zap.Int("remaining", len(r.queue)),
			zap.Duration("timeout", r.timeout),
		)
	}
	return r.delegate.Close()
}

// drain is the single consumer of the queue.
func (r *Buffered) drain() {
	defer close(r.done)
	for span := range r.queue {
		selfmetrics.QueueDepth.Set(float64(len(r.queue)))
		r.delegate.Report(span)
	}
}
