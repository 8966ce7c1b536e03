package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}

	// Should not panic
	m.Counter("test", 1)
	m.Gauge("test", 1.0)
	m.Histogram("test", 1.0)
	m.Timing("test", time.Second)
}

func TestInMemoryMetrics(t *testing.T) {
	t.Run("Counter", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Counter("sweeps", 1)
		m.Counter("sweeps", 1)
		m.Counter("sweeps", 1)

		assert.Equal(t, int64(3), m.GetCounter("sweeps"))
	})

	t.Run("Counter with tags", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Counter("gaps", 1, T("severity", "low"))
		m.Counter("gaps", 1, T("severity", "critical"))
		m.Counter("gaps", 1, T("severity", "low"))

		assert.Equal(t, int64(2), m.GetCounter("gaps", T("severity", "low")))
		assert.Equal(t, int64(1), m.GetCounter("gaps", T("severity", "critical")))
	})

	t.Run("Gauge", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Gauge("open_gaps", 12)
		assert.Equal(t, 12.0, m.GetGauge("open_gaps"))

		m.Gauge("open_gaps", 7)
		assert.Equal(t, 7.0, m.GetGauge("open_gaps"))
	})

	t.Run("Histogram", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Histogram("minutes_late", 18)
		m.Histogram("minutes_late", 45)
		m.Histogram("minutes_late", 90)

		values := m.GetHistogram("minutes_late")
		assert.Len(t, values, 3)
		assert.Contains(t, values, 18.0)
		assert.Contains(t, values, 45.0)
		assert.Contains(t, values, 90.0)
	})

	t.Run("Timing", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Timing("sweep_duration", 100*time.Millisecond)
		m.Timing("sweep_duration", 200*time.Millisecond)

		timings := m.GetTimings("sweep_duration")
		assert.Len(t, timings, 2)
		assert.Contains(t, timings, 100*time.Millisecond)
		assert.Contains(t, timings, 200*time.Millisecond)
	})

	t.Run("Reset", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Counter("test", 1)
		m.Gauge("test", 1.0)
		m.Histogram("test", 1.0)
		m.Timing("test", time.Second)

		m.Reset()

		assert.Equal(t, int64(0), m.GetCounter("test"))
		assert.Equal(t, 0.0, m.GetGauge("test"))
		assert.Empty(t, m.GetHistogram("test"))
		assert.Empty(t, m.GetTimings("test"))
	})
}

func TestTag(t *testing.T) {
	tag := T("key", "value")
	assert.Equal(t, "key", tag.Key)
	assert.Equal(t, "value", tag.Value)
}

func TestFormatKey(t *testing.T) {
	tests := []struct {
		name     string
		metric   string
		tags     []Tag
		expected string
	}{
		{
			name:     "no tags",
			metric:   "sweeps",
			tags:     nil,
			expected: "sweeps",
		},
		{
			name:     "single tag",
			metric:   "sweeps",
			tags:     []Tag{T("organization_id", "org_1")},
			expected: "sweeps:organization_id=org_1",
		},
		{
			name:     "multiple tags",
			metric:   "gaps",
			tags:     []Tag{T("organization_id", "org_1"), T("severity", "high")},
			expected: "gaps:organization_id=org_1:severity=high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatKey(tt.metric, tt.tags)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMetricConstants(t *testing.T) {
	// Verify metric names follow conventions
	assert.Equal(t, "podwatch.sweeps.total", MetricSweepsTotal)
	assert.Equal(t, "podwatch.sweeps.duration", MetricSweepDuration)
	assert.Equal(t, "podwatch.gaps.detected", MetricGapsDetected)
	assert.Equal(t, "podwatch.gaps.response_time", MetricResponseTime)
	assert.Equal(t, "podwatch.events.published", MetricEventsPublished)
}
