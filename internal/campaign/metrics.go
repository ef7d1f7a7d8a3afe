package campaign

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts runs by result.
	// Labels:
	// - result: completed | cancelled | failed
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wabulk",
			Name:      "runs_total",
			Help:      "Total number of send runs by result.",
		},
		[]string{"result"},
	)

	// messagesTotal counts attempts by status.
	// Labels:
	// - status: sent | failed | skipped
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wabulk",
			Name:      "messages_total",
			Help:      "Messages attempted, by outcome.",
		},
		[]string{"status"},
	)

	sendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wabulk",
			Name:      "send_duration_seconds",
			Help:      "Time spent delivering one message, settle wait included.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34},
		},
	)
)

func incRun(result string) {
	if result == "" {
		result = "unknown"
	}
	runsTotal.WithLabelValues(result).Inc()
}

func incMessage(status Status) {
	messagesTotal.WithLabelValues(string(status)).Inc()
}
