package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var syncFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "packstore",
		Name:      "cart_sync_failures_total",
		Help:      "Cart persistence attempts that failed",
	},
	[]string{"op"},
)
