package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster and worker inventory
	ClustersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gatewayd_clusters_total",
			Help: "Total number of clusters by status",
		},
		[]string{"status"},
	)

	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gatewayd_workers_total",
			Help: "Total number of workers by status",
		},
		[]string{"status"},
	)

	// Lifecycle operation outcomes and latency
	ClusterStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewayd_cluster_start_duration_seconds",
			Help:    "Time taken for a cluster to reach RUNNING after a start request",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClusterStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewayd_cluster_stop_duration_seconds",
			Help:    "Time taken to stop a cluster and its workers",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkerStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewayd_worker_start_duration_seconds",
			Help:    "Time taken for a worker to reach RUNNING after a start request",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkerStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewayd_worker_stop_duration_seconds",
			Help:    "Time taken to stop a single worker",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClusterFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewayd_cluster_failures_total",
			Help: "Total number of clusters that ended in FAILED, by reason",
		},
		[]string{"reason"},
	)

	WorkerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewayd_worker_failures_total",
			Help: "Total number of workers that ended in FAILED, by reason",
		},
		[]string{"reason"},
	)

	// Job queue backend interaction
	JobQueueSubmitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewayd_jobqueue_submit_duration_seconds",
			Help:    "Time taken for a job queue submit command to return",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobQueuePollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewayd_jobqueue_poll_total",
			Help: "Total job queue status polls by outcome",
		},
		[]string{"outcome"},
	)

	// Connection Registrar
	RegistrarRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewayd_registrar_requests_total",
			Help: "Total Connection Registrar HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	RegistrarRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatewayd_registrar_request_duration_seconds",
			Help:    "Connection Registrar request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Recovery controller
	RecoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatewayd_recovery_duration_seconds",
			Help:    "Time taken for the startup recovery pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecoveryMismatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewayd_recovery_mismatches_total",
			Help: "Total entities found inconsistent during startup recovery, by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(ClustersTotal)
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(ClusterStartDuration)
	prometheus.MustRegister(ClusterStopDuration)
	prometheus.MustRegister(WorkerStartDuration)
	prometheus.MustRegister(WorkerStopDuration)
	prometheus.MustRegister(ClusterFailuresTotal)
	prometheus.MustRegister(WorkerFailuresTotal)
	prometheus.MustRegister(JobQueueSubmitDuration)
	prometheus.MustRegister(JobQueuePollTotal)
	prometheus.MustRegister(RegistrarRequestsTotal)
	prometheus.MustRegister(RegistrarRequestDuration)
	prometheus.MustRegister(RecoveryDuration)
	prometheus.MustRegister(RecoveryMismatchesTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
