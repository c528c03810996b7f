package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_cache_hits_total",
			Help: "Cache lookups answered from the cache",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_cache_misses_total",
			Help: "Cache lookups that found no entry",
		},
		[]string{"namespace"},
	)

	// CacheErrors counts cache operations that failed and were degraded.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_cache_errors_total",
			Help: "Cache operations that failed",
		},
		[]string{"namespace", "operation"},
	)

	LinksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_links_created_total",
			Help: "Short links created",
		},
	)

	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_redirects_total",
			Help: "Redirect resolutions by outcome",
		},
		[]string{"outcome"},
	)

	EnqueueFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_click_enqueue_failures_total",
			Help: "Click events that could not be pushed onto the queue",
		},
	)

	ClicksRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_clicks_recorded_total",
			Help: "Click events persisted by the processor",
		},
	)

	// ClicksDropped counts events discarded by the processor, labelled by failure stage.
	ClicksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_clicks_dropped_total",
			Help: "Click events dropped by the processor",
		},
		[]string{"stage"},
	)

	ClicksDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_clicks_duplicate_total",
			Help: "Redelivered click events ignored by idempotency check",
		},
	)

	EnrichmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkpulse_enrichment_duration_seconds",
			Help:    "Latency of external analyzer calls",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"analyzer"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_messages_consumed_total",
			Help: "Stream messages consumed by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)
)
