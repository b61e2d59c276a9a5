package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	require.NotNil(t, collector)
	assert.NotNil(t, collector.GetRegistry())
}

func TestRegisterCounter(t *testing.T) {
	collector := NewCollector()
	counter := collector.RegisterCounter("test_counter", "Test counter", []string{"label1"})
	require.NotNil(t, counter)

	// Registering twice must fail
	err := collector.GetRegistry().Register(counter)
	assert.Error(t, err)
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	collector := NewCollector()
	histogram := collector.RegisterHistogram("test_histogram_default", "Test histogram", []string{"label1"}, nil)
	require.NotNil(t, histogram)

	histogram.WithLabelValues("a").Observe(0.2)
	families, err := collector.GetRegistry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Len(t, families[0].GetMetric()[0].GetHistogram().GetBucket(), 11)
}

func TestNewProcessCollector(t *testing.T) {
	collector := NewProcessCollector()
	families, err := collector.GetRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}

func TestNewSet(t *testing.T) {
	collector := NewCollector()
	set := NewSet(collector)
	require.NotNil(t, set.Schema)
	require.NotNil(t, set.Types)
	require.NotNil(t, set.Marshal)
	require.NotNil(t, set.API)

	// A second set on the same registry collides
	assert.Panics(t, func() { NewSet(collector) })
}
