package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_fetch_attempts_total",
		Help: "HTTP attempts issued per candidate kind and outcome",
	}, []string{"candidate", "outcome"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signal_fetch_duration_seconds",
		Help:    "Duration of a full feed fetch across all candidates",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"format"})

	FeedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_feed_errors_total",
		Help: "Feed fetches that ended in an error kind",
	}, []string{"feed", "kind"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_cache_lookups_total",
		Help: "Cache lookups by result (fresh, stale, miss, forced)",
	}, []string{"result"})

	ParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_parse_failures_total",
		Help: "Feed bodies that failed to parse and degraded to an empty list",
	}, []string{"feed"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signal_refresh_duration_seconds",
		Help:    "Duration of a full refresh cycle",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})

	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_refresh_total",
		Help: "Refresh cycles by trigger",
	}, []string{"trigger"})

	RetryPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_retry_passes_total",
		Help: "Retry passes by kind and outcome",
	}, []string{"kind", "outcome"})

	ItemsCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_items_current",
		Help: "Items in the current collection",
	})

	ItemsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_items_deduplicated_total",
		Help: "Items dropped as duplicates",
	})

	NewsClustersCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_news_clusters_current",
		Help: "News clusters in the current collection",
	})

	FeedsErrored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_feeds_errored",
		Help: "Feeds whose last fetch ended in an error",
	})

	Degraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_degraded",
		Help: "1 when any critical feed is errored",
	})

	GeocodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_geocode_lookups_total",
		Help: "Geocoder lookups by result (hit, miss, not_found, error, cached)",
	}, []string{"result"})

	MapDrawDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signal_map_draw_duration_seconds",
		Help:    "Duration of a drawMap request",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
)
