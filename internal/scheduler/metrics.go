package scheduler

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	sweeps      *prometheus.CounterVec
	swept       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	noops       *prometheus.CounterVec
	errors      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metron_scheduler_sweeps_total",
			Help: "Completed sweep passes per job.",
		}, []string{"job"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metron_scheduler_invoices_swept_total",
			Help: "Invoices examined by sweeps per job.",
		}, []string{"job"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metron_scheduler_transitions_total",
			Help: "State transitions applied per job.",
		}, []string{"job"}),
		noops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metron_scheduler_noops_total",
			Help: "Transitions skipped because a concurrent actor won per job.",
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metron_scheduler_errors_total",
			Help: "Errors encountered per job.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "metron_scheduler_batch_seconds",
			Help:    "Batch processing duration per job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	reg.MustRegister(m.sweeps, m.swept, m.transitions, m.noops, m.errors, m.duration)
	return m
}
