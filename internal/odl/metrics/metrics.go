package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for per-pool reconciliation.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics holds Prometheus metrics for hold-queue reconciliation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PoolsReconciled   *prometheus.CounterVec
	HoldsUpdated      prometheus.Counter
	HoldsExpired      prometheus.Counter
	EventsDelivered   *prometheus.CounterVec
	EventFailures     *prometheus.CounterVec
	LockContended     *prometheus.CounterVec
	TransientRetries  prometheus.Counter
	Notifications     *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	BatchDuration     prometheus.Histogram
	TasksRun          *prometheus.CounterVec
	TasksDropped      *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
}

// New registers the metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		PoolsReconciled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_odl_pools_reconciled_total",
			Help: "License pools reconciled, by outcome",
		}, []string{"outcome"}),
		HoldsUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "circulation_odl_holds_updated_total",
			Help: "Holds promoted or re-queued by reconciliation",
		}),
		HoldsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "circulation_odl_holds_expired_total",
			Help: "Expired ready holds removed by the reaper",
		}),
		EventsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_odl_events_delivered_total",
			Help: "Circulation events delivered to analytics, by type",
		}, []string{"type"}),
		EventFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_odl_event_failures_total",
			Help: "Circulation events that could not be delivered, by type",
		}, []string{"type"}),
		LockContended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_odl_mutex_contended_total",
			Help: "Task runs skipped because another worker held the collection mutex",
		}, []string{"task"}),
		TransientRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "circulation_odl_transient_retries_total",
			Help: "Per-pool units of work retried after a transient store error",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_odl_notifications_total",
			Help: "Hold-ready notifications, by outcome",
		}, []string{"outcome"}),
		ReconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "circulation_odl_reconcile_duration_seconds",
			Help:    "Duration of one per-pool reconciliation transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "circulation_odl_batch_duration_seconds",
			Help:    "Duration of one recalculation batch",
			Buckets: prometheus.DefBuckets,
		}),
		TasksRun: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_odl_tasks_run_total",
			Help: "Queued tasks executed, by task and outcome",
		}, []string{"task", "outcome"}),
		TasksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circulation_odl_tasks_dropped_total",
			Help: "Tasks rejected because the queue was full or stopped",
		}, []string{"task"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "circulation_odl_task_queue_depth",
			Help: "Tasks waiting for a worker",
		}),
	}
}

func (m *Metrics) IncPoolReconciled(outcome string) {
	if m == nil {
		return
	}
	m.PoolsReconciled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddHoldsUpdated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.HoldsUpdated.Add(float64(n))
}

func (m *Metrics) AddHoldsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.HoldsExpired.Add(float64(n))
}

func (m *Metrics) IncEventDelivered(eventType string) {
	if m == nil {
		return
	}
	m.EventsDelivered.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncEventFailure(eventType string) {
	if m == nil {
		return
	}
	m.EventFailures.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncLockContended(task string) {
	if m == nil {
		return
	}
	m.LockContended.WithLabelValues(task).Inc()
}

func (m *Metrics) IncTransientRetry() {
	if m == nil {
		return
	}
	m.TransientRetries.Inc()
}

func (m *Metrics) IncNotification(outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

// ObserveReconcile records the duration since start.
func (m *Metrics) ObserveReconcile(start time.Time) {
	if m == nil {
		return
	}
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
}

// ObserveBatch records the duration since start.
func (m *Metrics) ObserveBatch(start time.Time) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncTaskRun(task, outcome string) {
	if m == nil {
		return
	}
	m.TasksRun.WithLabelValues(task, outcome).Inc()
}

func (m *Metrics) IncTaskDropped(task string) {
	if m == nil {
		return
	}
	m.TasksDropped.WithLabelValues(task).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
