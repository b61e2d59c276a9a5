package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SchemaMetrics tracks schema cache and specification resolver activity.
// It satisfies schema.CacheObserver and content.ResolveObserver.
type SchemaMetrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
}

// NewSchemaMetrics initializes schema metrics with the collector
func NewSchemaMetrics(collector *Collector) *SchemaMetrics {
	return &SchemaMetrics{
		hits: collector.RegisterCounter(
			MetricSchemaCacheHitsTotal,
			"Schema cache lookups served from a current entry",
			[]string{LabelPortalType},
		),
		misses: collector.RegisterCounter(
			MetricSchemaCacheMissesTotal,
			"Schema cache lookups that consulted the type tool",
			[]string{LabelPortalType},
		),
		invalidations: collector.RegisterCounter(
			MetricSchemaCacheInvalidationsTotal,
			"Schema cache invalidations by type",
			[]string{LabelPortalType},
		),
		resolutions: collector.RegisterCounter(
			MetricSpecResolutionsTotal,
			"Provided-interface resolutions by outcome",
			[]string{LabelOutcome},
		),
	}
}

// CacheHit records a cache hit
func (m *SchemaMetrics) CacheHit(typeID string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(typeID).Inc()
}

// CacheMiss records a cache miss
func (m *SchemaMetrics) CacheMiss(typeID string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(typeID).Inc()
}

// CacheInvalidated records an invalidation. An empty type id stands for a
// full clear.
func (m *SchemaMetrics) CacheInvalidated(typeID string) {
	if m == nil {
		return
	}
	if typeID == "" {
		typeID = "*"
	}
	m.invalidations.WithLabelValues(typeID).Inc()
}

// SpecResolved records a resolver outcome
func (m *SchemaMetrics) SpecResolved(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}
