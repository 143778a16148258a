package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidrestore_jobs_submitted_total",
			Help: "Total number of accepted background jobs.",
		},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidrestore_jobs_finished_total",
			Help: "Total number of background jobs that reached a terminal state.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(jobsSubmittedTotal)
	prometheus.MustRegister(jobsFinishedTotal)
}
