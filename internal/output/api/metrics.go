package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route labels.
const (
	RouteFeeds    = "feeds"
	RouteFeed     = "feed"
	RouteItems    = "items"
	RouteClusters = "clusters"
	RouteMap      = "map"
	RouteRefresh  = "refresh"
)

var (
	// RequestsTotal counts API requests by route and HTTP status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_api_requests_total",
		Help: "Total number of read API requests",
	}, []string{"route", "status"})

	// RefreshLimited counts manual refreshes rejected by the per-client limiter.
	RefreshLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_api_refresh_limited_total",
		Help: "Manual refresh requests rejected by rate limiting",
	})
)
