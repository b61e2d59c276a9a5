package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics tracks HTTP and gRPC requests
type APIMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewAPIMetrics initializes API metrics with the collector
func NewAPIMetrics(collector *Collector) *APIMetrics {
	return &APIMetrics{
		requests: collector.RegisterCounter(
			MetricAPIRequestsTotal,
			"Total HTTP/gRPC requests by transport, method, endpoint, and status",
			[]string{LabelTransport, LabelMethod, LabelEndpoint, LabelStatus},
		),
		duration: collector.RegisterHistogram(
			MetricAPIRequestDuration,
			"API request duration in seconds",
			[]string{LabelTransport, LabelMethod, LabelEndpoint},
			prometheus.DefBuckets,
		),
	}
}

// RecordHTTPRequest records a served HTTP request
func (m *APIMetrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.record("http", method, endpoint, strconv.Itoa(status), duration)
}

// RecordGRPCRequest records a served gRPC call
func (m *APIMetrics) RecordGRPCRequest(method, code string, duration time.Duration) {
	m.record("grpc", method, method, code, duration)
}

func (m *APIMetrics) record(transport, method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(transport, method, endpoint, status).Inc()
	m.duration.WithLabelValues(transport, method, endpoint).Observe(duration.Seconds())
}
