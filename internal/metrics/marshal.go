package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarshalMetrics tracks record marshaling. It satisfies filerep.Observer.
type MarshalMetrics struct {
	bytesRead    *prometheus.CounterVec
	bytesWritten *prometheus.CounterVec
	spooled      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMarshalMetrics initializes marshal metrics with the collector
func NewMarshalMetrics(collector *Collector) *MarshalMetrics {
	return &MarshalMetrics{
		bytesRead: collector.RegisterCounter(
			MetricMarshalBytesReadTotal,
			"Bytes of marshaled records served to readers",
			[]string{LabelPortalType},
		),
		bytesWritten: collector.RegisterCounter(
			MetricMarshalBytesWrittenTotal,
			"Bytes of records received from writers",
			[]string{LabelPortalType},
		),
		spooled: collector.RegisterCounter(
			MetricMarshalSpooledTotal,
			"Records spooled to a temporary file",
			[]string{LabelPortalType},
		),
		duration: collector.RegisterHistogram(
			MetricMarshalDuration,
			"Duration of record materialization and application in seconds",
			[]string{LabelPortalType, LabelDirection},
			prometheus.DefBuckets,
		),
	}
}

// Materialized records a marshaled record ready to be read
func (m *MarshalMetrics) Materialized(portalType string, size int64, spooled bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.bytesRead.WithLabelValues(portalType).Add(float64(size))
	if spooled {
		m.spooled.WithLabelValues(portalType).Inc()
	}
	m.duration.WithLabelValues(portalType, DirectionRead).Observe(duration.Seconds())
}

// Applied records a received record applied to an object
func (m *MarshalMetrics) Applied(portalType string, size int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.bytesWritten.WithLabelValues(portalType).Add(float64(size))
	m.duration.WithLabelValues(portalType, DirectionWrite).Observe(duration.Seconds())
}
