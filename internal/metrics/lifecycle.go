package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TypeMetrics tracks type descriptor lifecycle activity. It satisfies
// fti.LifecycleObserver.
type TypeMetrics struct {
	events      *prometheus.CounterVec
	recompiles  *prometheus.CounterVec
	registered  *prometheus.GaugeVec
	constructed *prometheus.CounterVec
}

// NewTypeMetrics initializes type metrics with the collector
func NewTypeMetrics(collector *Collector) *TypeMetrics {
	return &TypeMetrics{
		events: collector.RegisterCounter(
			MetricLifecycleEventsTotal,
			"Type lifecycle events handled, by kind",
			[]string{LabelKind},
		),
		recompiles: collector.RegisterCounter(
			MetricSchemaRecompilesTotal,
			"Dynamic schemas recompiled after a model change",
			[]string{LabelPortalType},
		),
		registered: collector.RegisterGauge(
			MetricTypesRegistered,
			"Number of registered type descriptors",
			nil,
		),
		constructed: collector.RegisterCounter(
			MetricContentConstructedTotal,
			"Content objects constructed by type and status",
			[]string{LabelPortalType, LabelStatus},
		),
	}
}

// LifecycleEvent records a handled lifecycle event
func (m *TypeMetrics) LifecycleEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// SchemaRecompiled records a dynamic schema recompilation
func (m *TypeMetrics) SchemaRecompiled(typeID string) {
	if m == nil {
		return
	}
	m.recompiles.WithLabelValues(typeID).Inc()
}

// SetRegistered sets the number of registered types
func (m *TypeMetrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.registered.WithLabelValues().Set(float64(n))
}

// RecordConstruct records a construction attempt
func (m *TypeMetrics) RecordConstruct(portalType string, err error) {
	if m == nil {
		return
	}
	m.constructed.WithLabelValues(portalType, statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
