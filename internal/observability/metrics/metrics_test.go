package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	require.NotNil(t, m)

	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestRecordCycleIncrementsCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordCycle(0.0005, false)
	m.RecordCycle(0.002, true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.CyclesTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.XrunsTotal), 0)
}

func TestRecordBufferAndEventMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordBufferAllocated("small")
	m.RecordBufferAllocated("small")
	m.RecordBufferInUse("small", 3)
	m.RecordPoolMiss("small")
	m.RecordEventEnqueued("put")
	m.RecordEventDropped("put")
	m.RecordSequenceTruncation()

	assert.InDelta(t, 2, testutil.ToFloat64(m.BuffersAllocated.WithLabelValues("small")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.BuffersInUse.WithLabelValues("small")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BufferPoolMisses.WithLabelValues("small")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsEnqueued.WithLabelValues("put")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsDropped.WithLabelValues("put")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SequenceTruncations), 0)
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var m *IngenMetrics
	assert.NotPanics(t, func() {
		m.RecordCycle(1, true)
		m.RecordBufferAllocated("small")
		m.RecordBufferInUse("small", 1)
		m.RecordPoolMiss("small")
		m.RecordTaskExecuted(true)
		m.RecordWorkerUtilization("0", 0.5)
		m.RecordEventEnqueued("put")
		m.RecordEventDropped("put")
		m.RecordSequenceTruncation()
		m.SetEventQueueDepth(3)
	})
	assert.Nil(t, m.Registry())
}
