package authclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// refreshCallsTotal counts Refresh() calls by how they resolved.
	// Comparing it against refreshNetworkCallsTotal shows the dedup
	// working: many calls, few exchanges.
	refreshCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authclient_refresh_calls_total",
			Help: "Total number of refresh calls by outcome",
		},
		[]string{"outcome"}, // success/failure/abandoned/rejected
	)

	refreshNetworkCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authclient_refresh_network_calls_total",
			Help: "Total number of refresh network exchanges",
		},
	)

	retriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authclient_request_retries_total",
			Help: "Total number of 401-triggered request retries",
		},
	)
)
