// Package metrics defines the Prometheus instrumentation surface for the
// engine: one struct per subsystem (engine, buffer pool, task runtime,
// event pipeline), registered together so httpapi can expose them on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngenMetrics bundles every Prometheus collector the engine updates.
// It is constructed once at startup and threaded through the components
// that report into it; a nil *IngenMetrics disables collection everywhere
// (all record methods are nil-receiver safe).
type IngenMetrics struct {
	reg *prometheus.Registry

	// Engine
	CyclesTotal      prometheus.Counter
	CycleDuration    prometheus.Histogram
	XrunsTotal       prometheus.Counter
	ClientsConnected prometheus.Gauge

	// Buffer pool
	BuffersAllocated *prometheus.CounterVec // by tier
	BuffersInUse     *prometheus.GaugeVec   // by tier
	BufferPoolMisses *prometheus.CounterVec // by tier

	// Task runtime
	TasksExecuted    prometheus.Counter
	TaskStealsTotal  prometheus.Counter
	WorkerUtilization *prometheus.GaugeVec // by worker id

	// Event pipeline
	EventsEnqueued    *prometheus.CounterVec // by event kind
	EventsDropped     *prometheus.CounterVec // by event kind
	SequenceTruncations prometheus.Counter
	EventQueueDepth   prometheus.Gauge
}

// New constructs an IngenMetrics registered against a fresh Registry, which
// httpapi exposes via promhttp.HandlerFor.
func New() *IngenMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &IngenMetrics{
		reg: reg,

		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Number of audio cycles processed.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ingen",
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of run_cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		XrunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "engine",
			Name:      "xruns_total",
			Help:      "Number of cycles that overran their deadline.",
		}),
		ClientsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ingen",
			Subsystem: "engine",
			Name:      "clients_connected",
			Help:      "Number of connected control clients.",
		}),

		BuffersAllocated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "buffer",
			Name:      "allocations_total",
			Help:      "Buffers allocated from the factory, by tier.",
		}, []string{"tier"}),
		BuffersInUse: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ingen",
			Subsystem: "buffer",
			Name:      "in_use",
			Help:      "Buffers currently checked out of the pool, by tier.",
		}, []string{"tier"}),
		BufferPoolMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "buffer",
			Name:      "pool_misses_total",
			Help:      "Pool Get calls that required a fresh allocation, by tier.",
		}, []string{"tier"}),

		TasksExecuted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "task",
			Name:      "executed_total",
			Help:      "Tasks executed across all workers.",
		}),
		TaskStealsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "task",
			Name:      "steals_total",
			Help:      "Successful work-steals across all workers.",
		}),
		WorkerUtilization: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ingen",
			Subsystem: "task",
			Name:      "worker_utilization_ratio",
			Help:      "Fraction of the last cycle a worker spent executing tasks.",
		}, []string{"worker"}),

		EventsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "event",
			Name:      "enqueued_total",
			Help:      "Events enqueued on the pre-process to audio ring, by kind.",
		}, []string{"kind"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "event",
			Name:      "dropped_total",
			Help:      "Events dropped because the ring was full, by kind.",
		}, []string{"kind"}),
		SequenceTruncations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ingen",
			Subsystem: "event",
			Name:      "sequence_truncations_total",
			Help:      "ATOM Sequence append_event calls that overflowed the buffer.",
		}),
		EventQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ingen",
			Subsystem: "event",
			Name:      "queue_depth",
			Help:      "Current depth of the pre-process event queue.",
		}),
	}
	return m
}

// Registry returns the Prometheus registry these collectors are bound to.
func (m *IngenMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *IngenMetrics) RecordCycle(seconds float64, xrun bool) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(seconds)
	if xrun {
		m.XrunsTotal.Inc()
	}
}

func (m *IngenMetrics) RecordBufferAllocated(tier string) {
	if m == nil {
		return
	}
	m.BuffersAllocated.WithLabelValues(tier).Inc()
}

func (m *IngenMetrics) RecordBufferInUse(tier string, delta float64) {
	if m == nil {
		return
	}
	m.BuffersInUse.WithLabelValues(tier).Add(delta)
}

func (m *IngenMetrics) RecordPoolMiss(tier string) {
	if m == nil {
		return
	}
	m.BufferPoolMisses.WithLabelValues(tier).Inc()
}

func (m *IngenMetrics) RecordTaskExecuted(stole bool) {
	if m == nil {
		return
	}
	m.TasksExecuted.Inc()
	if stole {
		m.TaskStealsTotal.Inc()
	}
}

func (m *IngenMetrics) RecordWorkerUtilization(worker string, ratio float64) {
	if m == nil {
		return
	}
	m.WorkerUtilization.WithLabelValues(worker).Set(ratio)
}

func (m *IngenMetrics) RecordEventEnqueued(kind string) {
	if m == nil {
		return
	}
	m.EventsEnqueued.WithLabelValues(kind).Inc()
}

func (m *IngenMetrics) RecordEventDropped(kind string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(kind).Inc()
}

func (m *IngenMetrics) RecordSequenceTruncation() {
	if m == nil {
		return
	}
	m.SequenceTruncations.Inc()
}

func (m *IngenMetrics) SetEventQueueDepth(depth float64) {
	if m == nil {
		return
	}
	m.EventQueueDepth.Set(depth)
}
