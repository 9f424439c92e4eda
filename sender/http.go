package sender

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/meterwave/tracing-go/trace"
)

const (
	traceEndpoint        = "/report?f=trace"
	metricEndpoint       = "/report?f=metric"
	distributionEndpoint = "/report?f=histogram"
)

// HTTPConfig configures the direct-ingestion HTTP sender.
type HTTPConfig struct {
	// URL is the ingestion base URL, e.g. "https://ingest.example.com".
	URL string
	// Token authenticates the sender; sent as a bearer token.
	Token string
	// Timeout bounds one report request. Defaults to 10s.
	Timeout time.Duration
	// RetryCount is how many times a failed request is retried before the
	// failure is surfaced. Defaults to 3; negative disables retries.
	RetryCount int
}

// HTTPSender reports spans, metrics, and distributions over HTTP in line
// protocol, one request per report. It implements Sender.
type HTTPSender struct {
	client   *resty.Client
	failures atomic.Int64
}

// NewHTTPSender creates a direct-ingestion sender.
func NewHTTPSender(cfg HTTPConfig) (*HTTPSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sender: ingestion URL required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 3
	} else if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}

	client := resty.New()
	client.
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Content-Type", "text/plain").
		SetHeader("User-Agent", "meterwave-tracing-go")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &HTTPSender{client: client}, nil
}

// SendSpan transmits one finished span as a single span line.
func (s *HTTPSender) SendSpan(operation string, startMillis, durationMillis int64, source string,
	traceID, spanID trace.ID, parents, follows []trace.ID,
	tags []trace.Tag, logs []trace.Log) error {

	var b strings.Builder
	fmt.Fprintf(&b, "%q source=%q traceId=%s spanId=%s", operation, source, traceID, spanID)
	for _, p := range parents {
		fmt.Fprintf(&b, " parent=%s", p)
	}
	for _, f := range follows {
		fmt.Fprintf(&b, " followsFrom=%s", f)
	}
	for _, t := range tags {
		fmt.Fprintf(&b, " %q=%q", t.Key, t.Value)
	}
	if len(logs) > 0 {
		b.WriteString(` "_spanLogs"="true"`)
	}
	fmt.Fprintf(&b, " %d %d\n", startMillis, durationMillis)

	return s.post(traceEndpoint, b.String())
}

// SendMetric transmits one metric point as a single metric line.
func (s *HTTPSender) SendMetric(name string, value float64, timestampMillis int64, source string,
	tags map[string]string) error {

	var b strings.Builder
	fmt.Fprintf(&b, "%q %v %d source=%q", name, value, timestampMillis/1000, source)
	writeTags(&b, tags)
	b.WriteString("\n")

	return s.post(metricEndpoint, b.String())
}

// SendDistribution transmits one distribution point as a histogram line.
func (s *HTTPSender) SendDistribution(name string, centroids []Centroid, timestampMillis int64,
	source string, tags map[string]string) error {

	var b strings.Builder
	fmt.Fprintf(&b, "!M %d", timestampMillis/1000)
	for _, c := range centroids {
		fmt.Fprintf(&b, " #%d %v", c.Count, c.Value)
	}
	fmt.Fprintf(&b, " %q source=%q", name, source)
	writeTags(&b, tags)
	b.WriteString("\n")

	return s.post(distributionEndpoint, b.String())
}

// FailureCount returns how many report requests ultimately failed.
func (s *HTTPSender) FailureCount() int64 {
	return s.failures.Load()
}

// Close releases the underlying HTTP client's idle connections.
func (s *HTTPSender) Close() error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}

func (s *HTTPSender) post(endpoint, body string) error {
	resp, err := s.client.R().SetBody(body).Post(endpoint)
	if err != nil {
		s.failures.Add(1)
		return fmt.Errorf("sender: report failed: %w", err)
	}
	if resp.IsError() {
		s.failures.Add(1)
		return fmt.Errorf("sender: report rejected: %s", resp.Status())
	}
	return nil
}

func writeTags(b *strings.Builder, tags map[string]string) {
	for k, v := range tags {
		fmt.Fprintf(b, " %q=%q", k, v)
	}
}
