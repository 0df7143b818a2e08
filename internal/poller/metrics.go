package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packstore",
			Name:      "order_poll_outcomes_total",
			Help:      "Order confirmation polls by terminal state",
		},
		[]string{"state"},
	)

	pollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "packstore",
			Name:      "order_poll_attempts",
			Help:      "Order lookup attempts made by a finished poll",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		},
	)
)
