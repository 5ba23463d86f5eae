package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for order-history sessions.
var (
	historySessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skyfi_history_sessions_created_total",
		Help: "Total number of order-history sessions created",
	})

	historyPageFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skyfi_history_page_fetches_total",
		Help: "Total number of order-history page fetches by navigation",
	}, []string{"action"})
)
