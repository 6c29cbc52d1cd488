package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queueJobsTotal, queueJobRetriesTotal) }

var queueJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_jobs_total",
		Help: "Total queue job state transitions, labeled by state.",
	},
	[]string{"state"}, // 'waiting', 'active', 'completed', 'failed', 'stalled'
)

var queueJobRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "queue_job_retries_total",
		Help: "Total number of job attempts re-enqueued after a failure.",
	},
)

func IncJob(state string) {
	queueJobsTotal.WithLabelValues(state).Inc()
}

func IncJobRetry() {
	queueJobRetriesTotal.Inc()
}
