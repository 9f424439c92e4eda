// Package heartbeat emits a periodic liveness metric per monitored
// component dimension, so dashboards can tell "no traffic" apart from "not
// running". The tracer registers one tag combination per component and
// custom RED dimension it observes.
package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meterwave/tracing-go/internal/selfmetrics"
	"github.com/meterwave/tracing-go/sender"
)

// MetricName is the heartbeat metric.
const MetricName = "~component.heartbeat"

// DefaultInterval is how often heartbeats are sent.
const DefaultInterval = 5 * time.Minute

// Service periodically sends one heartbeat point per registered tag
// combination.
type Service struct {
	sender   sender.Sender
	source   string
	baseTags map[string]string
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	combos map[string]map[string]string

	stop chan struct{}
	done chan struct{}
}

// NewService creates and starts a heartbeat service. baseTags are stamped on
// every heartbeat; nil logger disables logging.
func NewService(s sender.Sender, source string, baseTags map[string]string,
	interval time.Duration, logger *zap.Logger) *Service {

	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		sender:   s,
		source:   source,
		baseTags: baseTags,
		interval: interval,
		logger:   logger,
		combos:   make(map[string]map[string]string),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	svc.Register(nil)
	go svc.run()
	return svc
}

// Register adds a tag combination to heartbeat on, merged over the base
// tags. Registering the same combination again is a no-op.
func (s *Service) Register(tags map[string]string) {
	merged := make(map[string]string, len(s.baseTags)+len(tags))
	for k, v := range s.baseTags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	key := comboKey(merged)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.combos[key]; !ok {
		s.combos[key] = merged
	}
}

// Beat sends one heartbeat per registered combination immediately.
func (s *Service) Beat() {
	s.mu.Lock()
	combos := make([]map[string]string, 0, len(s.combos))
	for _, tags := range s.combos {
		combos = append(combos, tags)
	}
	s.mu.Unlock()

	now := time.Now().UnixMilli()
	for _, tags := range combos {
		if err := s.sender.SendMetric(MetricName, 1, now, s.source, tags); err != nil {
			s.logger.Warn("failed to send heartbeat", zap.Error(err))
			continue
		}
		selfmetrics.Heartbeats.Inc()
	}
}

// Stop halts the ticker after flushing one final round of heartbeats.
func (s *Service) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Service) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Beat()
		case <-s.stop:
			s.Beat()
			return
		}
	}
}

func comboKey(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
		b.WriteByte(';')
	}
	return b.String()
}
