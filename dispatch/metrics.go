package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "kunou"
	subsystem = "dispatch"
)

type metrics struct {
	submitted   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	completed   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	outstanding prometheus.Gauge
	duration    *prometheus.HistogramVec
	queued      prometheus.GaugeFunc
	running     prometheus.GaugeFunc
}

func newMetrics(queued, running func() float64) *metrics {
	return &metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_submitted_total",
			Help:      "Tasks accepted for execution.",
		}, []string{"op"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_rejected_total",
			Help:      "Tasks refused or discarded before running.",
		}, []string{"op", "reason"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_completed_total",
			Help:      "Tasks that ran to completion, failed or not.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_failures_total",
			Help:      "Task failures by stage.",
		}, []string{"op", "stage"}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tracked_tasks_outstanding",
			Help:      "Tracked tasks submitted but not yet finished.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_duration_seconds",
			Help:      "Time spent running a task including its follow-up.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		queued: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_queued",
			Help:      "Tasks waiting in the queue.",
		}, queued),
		running: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_running",
			Help:      "Live workers in the pool.",
		}, running),
	}
}

func (m *metrics) register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.submitted, m.rejected, m.completed, m.failures,
		m.outstanding, m.duration, m.queued, m.running,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
