package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP-side counters. Per-message counters live with the runner; all of them
// are served by GET /metrics from the default registry.
var (
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wabulk",
		Name:      "uploads_total",
		Help:      "Contact files accepted via POST /api/contacts.",
	})

	// Labels:
	// - trigger: upload | retry
	runsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wabulk",
		Name:      "runs_started_total",
		Help:      "Runs started from the API.",
	}, []string{"trigger"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wabulk",
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
