package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	engineWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidrestore_engine_wait_seconds",
			Help:    "Time spent waiting for the engine admission gate.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	engineInvokeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidrestore_engine_invoke_seconds",
			Help:    "Compute engine invocation duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 3, 10),
		},
	)

	activeWorkspaces = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidrestore_active_workspaces",
			Help: "Number of allocated job workspaces.",
		},
	)
)

func init() {
	prometheus.MustRegister(engineWaitSeconds)
	prometheus.MustRegister(engineInvokeSeconds)
	prometheus.MustRegister(activeWorkspaces)
}
