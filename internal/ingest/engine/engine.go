// Package engine owns the ingestion state: the fetch cache, the current item
// collection, the news clusters and the per-feed status records. A refresh
// fans out one fetch per feed, then swaps in a new immutable Snapshot.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/ingest/cache"
	"github.com/lueurxax/signal-ingest/internal/process/geocluster"
)

const (
	defaultStaleRetryGate = 2 * time.Minute

	logFieldFeed     = "feed"
	logFieldItems    = "items"
	logFieldClusters = "clusters"
	logFieldErrored  = "errored"
	logFieldFeeds    = "feeds"
	logFieldKind     = "kind"
	logFieldAdded    = "added"
	logFieldDuration = "duration"
)

// FeedSource lists the configured feeds.
type FeedSource interface {
	Feeds() []domain.FeedDescriptor
	Get(id string) (domain.FeedDescriptor, bool)
}

// Fetcher performs one resilient fetch of a feed.
type Fetcher interface {
	Fetch(ctx context.Context, feed domain.FeedDescriptor, query string) domain.FetchResult
}

// Parser maps a feed body to items and never fails.
type Parser interface {
	Parse(feed domain.FeedDescriptor, body []byte) []domain.NormalizedItem
}

// Normalizer canonicalizes and enriches parser output.
type Normalizer interface {
	Normalize(items []domain.NormalizedItem) []domain.NormalizedItem
}

// Clusterer groups news items into stories.
type Clusterer interface {
	Cluster(items []domain.NormalizedItem) []domain.NewsCluster
}

// Geocoder fills coordinates from location text.
type Geocoder interface {
	FillMissing(ctx context.Context, items []domain.NormalizedItem) int
}

// Config tunes the engine.
type Config struct {
	// LiveMode keeps retry passes enabled after a snapshot file was loaded.
	LiveMode bool
	// StaleRetryGate is the minimum spacing between stale retry passes.
	StaleRetryGate time.Duration
	// GeoRadius is the default drawMap merge radius in pixels.
	GeoRadius float64
}

// Deps are the collaborators of the engine. Geocoder may be nil.
type Deps struct {
	Feeds      FeedSource
	Fetcher    Fetcher
	Parser     Parser
	Normalizer Normalizer
	Clusterer  Clusterer
	Geocoder   Geocoder
	Cache      *cache.Cache
}

// Snapshot is one consistent view of the pipeline output. Snapshots are
// never modified after they are published.
type Snapshot struct {
	GeneratedAt time.Time               `json:"generatedAt"`
	Items       []domain.NormalizedItem `json:"items"`
	Clusters    []domain.NewsCluster    `json:"clusters"`
	Statuses    []domain.FeedStatus     `json:"statuses"`
	Health      domain.HealthReport     `json:"health"`

	index *geocluster.Index
}

// Engine is the single owner of ingestion state. Readers take the current
// Snapshot; writers are serialized by commitMu and at most one retry pass
// runs at a time.
type Engine struct {
	feeds      FeedSource
	fetcher    Fetcher
	parser     Parser
	normalizer Normalizer
	clusterer  Clusterer
	geocoder   Geocoder
	cache      *cache.Cache

	liveMode       bool
	staleRetryGate time.Duration
	geoRadius      float64

	snapshot       atomic.Pointer[Snapshot]
	commitMu       sync.Mutex
	retryBusy      atomic.Bool
	lastStaleRetry atomic.Int64
	fromSnapshot   atomic.Bool
	previews       singleflight.Group

	now    func() time.Time
	logger *zerolog.Logger
}

// New creates an Engine with an empty snapshot.
func New(cfg Config, deps Deps, logger *zerolog.Logger) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if cfg.StaleRetryGate <= 0 {
		cfg.StaleRetryGate = defaultStaleRetryGate
	}

	if cfg.GeoRadius <= 0 {
		cfg.GeoRadius = geocluster.DefaultPixelRadius
	}

	if deps.Cache == nil {
		deps.Cache = cache.New()
	}

	e := &Engine{
		feeds:          deps.Feeds,
		fetcher:        deps.Fetcher,
		parser:         deps.Parser,
		normalizer:     deps.Normalizer,
		clusterer:      deps.Clusterer,
		geocoder:       deps.Geocoder,
		cache:          deps.Cache,
		liveMode:       cfg.LiveMode,
		staleRetryGate: cfg.StaleRetryGate,
		geoRadius:      cfg.GeoRadius,
		now:            time.Now,
		logger:         logger,
	}

	e.snapshot.Store(&Snapshot{
		Health: domain.BuildHealth(nil),
		index:  geocluster.NewIndex(nil),
	})

	return e
}

// Snapshot returns the current published snapshot.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Feeds returns the configured feeds in registry order.
func (e *Engine) Feeds() []domain.FeedDescriptor {
	return e.feeds.Feeds()
}

// Ready reports whether at least one refresh or snapshot load completed.
func (e *Engine) Ready() bool {
	return !e.snapshot.Load().GeneratedAt.IsZero()
}

// Static reports whether the engine serves a preloaded snapshot outside
// live mode. Retry passes and timer refreshes are skipped while it holds;
// the next full reconcile of live data ends it.
func (e *Engine) Static() bool {
	return !e.liveMode && e.fromSnapshot.Load()
}

// RetriesEnabled reports whether retry passes may run.
func (e *Engine) RetriesEnabled() bool {
	return !e.Static()
}

// DrawMap clusters the geolocated items of the current snapshot inside v.
// A non-positive radius uses the configured default.
func (e *Engine) DrawMap(v geocluster.Viewport, pixelRadius float64) ([]domain.MapCluster, error) {
	if pixelRadius <= 0 {
		pixelRadius = e.geoRadius
	}

	return e.snapshot.Load().index.DrawMap(v, pixelRadius)
}

// ItemsByCategory returns the current items of one category, or all items
// when category is empty.
func (s *Snapshot) ItemsByCategory(category string) []domain.NormalizedItem {
	if category == "" {
		return s.Items
	}

	out := make([]domain.NormalizedItem, 0, len(s.Items))

	for _, item := range s.Items {
		if item.Category == category {
			out = append(out, item)
		}
	}

	return out
}
