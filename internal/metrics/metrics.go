package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "threadpool"
	poolLabel = "pool"
)

// Metrics holds the Prometheus collectors shared by every pool registered
// against one registry, plus plain counters for JSON snapshots.
type Metrics struct {
	tasksSubmitted *prometheus.CounterVec
	tasksRejected  *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksPanicked  *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	queueSize      *prometheus.GaugeVec
	busyWorkers    *prometheus.GaugeVec
	workers        *prometheus.GaugeVec

	mu    sync.Mutex
	pools map[string]*poolCounters
}

type poolCounters struct {
	submitted  atomic.Uint64
	rejected   atomic.Uint64
	completed  atomic.Uint64
	panicked   atomic.Uint64
	durationNs atomic.Uint64
	startTime  time.Time
}

// New registers the pool collectors with reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		tasksSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted by the pool",
		}, []string{poolLabel}),
		tasksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of tasks rejected because the pool was shut down",
		}, []string{poolLabel}),
		tasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that returned normally",
		}, []string{poolLabel}),
		tasksPanicked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_panicked_total",
			Help:      "Total number of tasks that panicked",
		}, []string{poolLabel}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{poolLabel}),
		queueSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_size",
			Help:      "Current number of pending tasks",
		}, []string{poolLabel}),
		busyWorkers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Current number of workers executing a task",
		}, []string{poolLabel}),
		workers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Current number of live workers",
		}, []string{poolLabel}),
		pools: make(map[string]*poolCounters),
	}
}

func (m *Metrics) counters(pool string) *poolCounters {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.pools[pool]
	if !ok {
		c = &poolCounters{startTime: time.Now()}
		m.pools[pool] = c
	}
	return c
}

// RecordSubmitted counts an accepted task.
func (m *Metrics) RecordSubmitted(pool string) {
	m.tasksSubmitted.WithLabelValues(pool).Inc()
	m.counters(pool).submitted.Add(1)
}

// RecordRejected counts a refused task.
func (m *Metrics) RecordRejected(pool string) {
	m.tasksRejected.WithLabelValues(pool).Inc()
	m.counters(pool).rejected.Add(1)
}

// RecordCompleted counts a task that returned normally after d.
func (m *Metrics) RecordCompleted(pool string, d time.Duration) {
	m.tasksCompleted.WithLabelValues(pool).Inc()
	m.taskDuration.WithLabelValues(pool).Observe(d.Seconds())

	c := m.counters(pool)
	c.completed.Add(1)
	c.durationNs.Add(uint64(d.Nanoseconds()))
}

// RecordPanicked counts a task that panicked after d.
func (m *Metrics) RecordPanicked(pool string, d time.Duration) {
	m.tasksPanicked.WithLabelValues(pool).Inc()
	m.taskDuration.WithLabelValues(pool).Observe(d.Seconds())

	c := m.counters(pool)
	c.panicked.Add(1)
	c.durationNs.Add(uint64(d.Nanoseconds()))
}

// SetQueueSize sets the pending task gauge.
func (m *Metrics) SetQueueSize(pool string, n int) {
	m.queueSize.WithLabelValues(pool).Set(float64(n))
}

// SetBusy sets the busy worker gauge.
func (m *Metrics) SetBusy(pool string, n int) {
	m.busyWorkers.WithLabelValues(pool).Set(float64(n))
}

// SetWorkers sets the live worker gauge.
func (m *Metrics) SetWorkers(pool string, n int) {
	m.workers.WithLabelValues(pool).Set(float64(n))
}

// Snapshot is a point-in-time copy of one pool's counters.
type Snapshot struct {
	Pool            string        `json:"pool"`
	Submitted       uint64        `json:"submitted"`
	Rejected        uint64        `json:"rejected"`
	Completed       uint64        `json:"completed"`
	Panicked        uint64        `json:"panicked"`
	AverageDuration time.Duration `json:"average_duration_ns"`
	Throughput      float64       `json:"throughput"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

// Snapshot returns the current counters for pool.
func (m *Metrics) Snapshot(pool string) Snapshot {
	c := m.counters(pool)

	done := c.completed.Load() + c.panicked.Load()
	elapsed := time.Since(c.startTime)

	snap := Snapshot{
		Pool:      pool,
		Submitted: c.submitted.Load(),
		Rejected:  c.rejected.Load(),
		Completed: c.completed.Load(),
		Panicked:  c.panicked.Load(),
		Elapsed:   elapsed,
	}
	if done > 0 {
		snap.AverageDuration = time.Duration(c.durationNs.Load() / done)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		snap.Throughput = float64(done) / secs
	}
	return snap
}
