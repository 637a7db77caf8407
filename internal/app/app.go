// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires the feed registry, fetcher, parsers, enrichment,
// clustering and the ingestion engine together and exposes the run modes:
//
//   - Serve mode: scheduled refreshes, retry passes and the HTTP read API
//   - Once mode: a single refresh written out as a JSON snapshot
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-ingest/internal/core/credentials"
	"github.com/lueurxax/signal-ingest/internal/core/links"
	"github.com/lueurxax/signal-ingest/internal/core/registry"
	"github.com/lueurxax/signal-ingest/internal/ingest/cache"
	"github.com/lueurxax/signal-ingest/internal/ingest/engine"
	"github.com/lueurxax/signal-ingest/internal/ingest/fetch"
	"github.com/lueurxax/signal-ingest/internal/ingest/scheduler"
	"github.com/lueurxax/signal-ingest/internal/output/api"
	"github.com/lueurxax/signal-ingest/internal/platform/config"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
	"github.com/lueurxax/signal-ingest/internal/process/clustering"
	"github.com/lueurxax/signal-ingest/internal/process/enrichment"
	"github.com/lueurxax/signal-ingest/internal/process/parsers"
)

const (
	logFieldFeeds    = "feeds"
	logFieldCritical = "critical"
	logFieldPath     = "path"
	logFieldItems    = "items"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg       *config.Config
	registry  *registry.Registry
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	logger    *zerolog.Logger
}

// New loads the feed registry and wires the pipeline.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	reg, err := registry.Load(cfg.FeedsFile, registry.Options{Critical: cfg.CriticalFeeds})
	if err != nil {
		return nil, fmt.Errorf("load feed registry: %w", err)
	}

	logger.Info().
		Int(logFieldFeeds, reg.Len()).
		Strs(logFieldCritical, reg.CriticalIDs()).
		Msg("feed registry loaded")

	fetcher := fetch.New(fetch.Config{
		DefaultTimeout: cfg.FetchTimeout,
		UserAgent:      cfg.FetchUserAgent,
		MaxBodyMB:      cfg.FetchMaxBodyMB,
		HostRPS:        cfg.FetchHostRPS,
	}, credentials.NewResolver(cfg.ClientKeys, cfg.GroupKeys, cfg.ServerKeys), reg, logger)

	// Left nil when disabled so the engine skips the side-pass.
	var geocoder engine.Geocoder

	if cfg.GeocodeEnabled {
		geocoder = enrichment.NewGeocoder(enrichment.GeocoderConfig{
			BaseURL:       cfg.GeocodeBaseURL,
			Interval:      cfg.GeocodeInterval,
			MaxPerRefresh: cfg.GeocodeMaxPerRefresh,
			UserAgent:     cfg.FetchUserAgent,
		}, logger)
	}

	eng := engine.New(engine.Config{
		LiveMode:       cfg.LiveMode,
		StaleRetryGate: cfg.StaleRetryGate,
		GeoRadius:      cfg.GeoClusterRadiusPx,
	}, engine.Deps{
		Feeds:      reg,
		Fetcher:    fetcher,
		Parser:     parsers.NewRegistry(logger),
		Normalizer: enrichment.New(links.NewCredibilityRanker(cfg.CredibilityTier1Domains, cfg.CredibilityTier2Domains), logger),
		Clusterer:  clustering.New(cfg.ClusterSimilarityThreshold, logger),
		Geocoder:   geocoder,
		Cache:      cache.New(),
	}, logger)

	return &App{
		cfg:      cfg,
		registry: reg,
		engine:   eng,
		scheduler: scheduler.New(scheduler.Config{
			Interval:           cfg.RefreshInterval(),
			RetryInterval:      cfg.RetryCheckInterval,
			SkipInitialRefresh: cfg.SnapshotFile != "" && !cfg.LiveMode,
		}, eng, logger),
		logger: logger,
	}, nil
}

// Engine returns the ingestion engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// StartHTTPServer starts the health, metrics and read API server.
func (a *App) StartHTTPServer(ctx context.Context) error {
	handler := api.NewHandler(a.engine, a.scheduler, scheduler.TriggerManual, a.logger)
	srv := observability.NewServerWithAPI(a.engine, a.cfg.HTTPPort, handler, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}

	return nil
}

// RunServe preloads the configured snapshot, then runs the scheduler until
// ctx is canceled.
func (a *App) RunServe(ctx context.Context) error {
	if err := a.preloadSnapshot(); err != nil {
		return err
	}

	if err := a.scheduler.Run(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	return nil
}

func (a *App) preloadSnapshot() error {
	if a.cfg.SnapshotFile == "" {
		return nil
	}

	if err := a.engine.LoadSnapshot(a.cfg.SnapshotFile); err != nil {
		return fmt.Errorf("preload snapshot: %w", err)
	}

	a.logger.Info().
		Str(logFieldPath, a.cfg.SnapshotFile).
		Bool("retries", a.engine.RetriesEnabled()).
		Msg("snapshot preloaded")

	return nil
}

// RunOnce performs one refresh plus one failed-feed retry pass and writes
// the snapshot to out, or to w when out is empty.
func (a *App) RunOnce(ctx context.Context, out string, w io.Writer) error {
	snap, err := a.scheduler.Refresh(ctx, scheduler.TriggerStartup, false)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	a.scheduler.Retry(ctx)

	a.logger.Info().
		Int(logFieldItems, len(a.engine.Snapshot().Items)).
		Str("health", string(snap.Health.State)).
		Msg("single refresh complete")

	if out == "" {
		if err := a.engine.WriteSnapshot(w); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}

		return nil
	}

	if err := a.engine.SaveSnapshot(out); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	a.logger.Info().Str(logFieldPath, out).Msg("snapshot written")

	return nil
}
