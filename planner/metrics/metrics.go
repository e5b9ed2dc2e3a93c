// Package metrics registers the planner's Prometheus collectors.
// They are served on /server/metrics by the rpc package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Route planning
	RouteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectra_bridge_route_requests_total",
			Help: "Total number of route planning requests by outcome",
		},
		[]string{"outcome"},
	)

	RouteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spectra_bridge_route_duration_seconds",
			Help:    "Route planning duration in seconds, cache hits included",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	AllocatorCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spectra_bridge_allocator_candidates",
		Help:    "Number of candidate source chains considered per allocation",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 12, 20},
	})

	ExhaustiveFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectra_bridge_exhaustive_fallbacks_total",
		Help: "Exhaustive subset searches that fell back to the greedy walk",
	})

	// Fee quoting
	FeeQuotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectra_bridge_fee_quotes_total",
			Help: "Fee quotes by pricing source (external, external_low, fallback)",
		},
		[]string{"source"},
	)

	ExternalQuoteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spectra_bridge_external_quote_duration_seconds",
		Help:    "Socket quote request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Balances
	BalanceQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectra_bridge_balance_queries_total",
			Help: "Balance queries by chain and status (ok, zero_fallback)",
		},
		[]string{"chain", "status"},
	)

	BalanceQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spectra_bridge_balance_query_duration_seconds",
			Help:    "Balance query duration in seconds including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"chain"},
	)

	// Cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectra_bridge_cache_lookups_total",
			Help: "Cache lookups by kind (routes, quote) and result (hit, miss)",
		},
		[]string{"kind", "result"},
	)
)
