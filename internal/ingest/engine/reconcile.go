package engine

import (
	"context"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/process/dedup"
	"github.com/lueurxax/signal-ingest/internal/process/enrichment"
	"github.com/lueurxax/signal-ingest/internal/process/geocluster"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
)

// Refresh fetches every feed and publishes the result. It is the Fetching
// and Reconciling steps run back to back.
func (e *Engine) Refresh(ctx context.Context, force bool) *Snapshot {
	return e.Reconcile(ctx, e.FetchAll(ctx, e.feeds.Feeds(), force))
}

// Reconcile replaces the item collection with the outcomes of a full
// refresh and publishes a new snapshot.
func (e *Engine) Reconcile(ctx context.Context, outcomes []FeedOutcome) *Snapshot {
	start := e.now()

	var all []domain.NormalizedItem

	statuses := make([]domain.FeedStatus, 0, len(outcomes))

	for _, o := range outcomes {
		all = append(all, o.Items...)
		statuses = append(statuses, o.Status)
	}

	deduped := dedup.Deduplicate(all, e.logger)
	observability.ItemsDeduplicated.Add(float64(deduped.DroppedCount))

	e.geocode(ctx, deduped.Items)

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	snap := e.build(deduped.Items, statuses)
	e.publish(snap)
	e.fromSnapshot.Store(false)

	e.logger.Info().
		Int(logFieldItems, len(snap.Items)).
		Int(logFieldClusters, len(snap.Clusters)).
		Int(logFieldErrored, snap.Health.ErroredFeeds).
		Dur(logFieldDuration, e.now().Sub(start)).
		Msg("refresh reconciled")

	return snap
}

func (e *Engine) geocode(ctx context.Context, items []domain.NormalizedItem) {
	if e.geocoder == nil || len(items) == 0 {
		return
	}

	if n := e.geocoder.FillMissing(ctx, items); n > 0 {
		e.logger.Debug().Int(logFieldItems, n).Msg("geocoded items")
	}
}

// build runs clustering and trend labelling over items and assembles a
// snapshot. items is owned by the new snapshot.
func (e *Engine) build(items []domain.NormalizedItem, statuses []domain.FeedStatus) *Snapshot {
	now := e.now()

	var news []domain.NormalizedItem

	for _, item := range items {
		if item.Category == domain.CategoryNews {
			news = append(news, item)
		}
	}

	clusters := e.clusterer.Cluster(news)
	enrichment.ApplyTrends(items, clusters, now)

	return &Snapshot{
		GeneratedAt: now,
		Items:       items,
		Clusters:    clusters,
		Statuses:    statuses,
		Health:      domain.BuildHealth(statuses),
		index:       geocluster.NewIndex(items),
	}
}

func (e *Engine) publish(snap *Snapshot) {
	e.snapshot.Store(snap)

	observability.ItemsCurrent.Set(float64(len(snap.Items)))
	observability.NewsClustersCurrent.Set(float64(len(snap.Clusters)))
	observability.FeedsErrored.Set(float64(snap.Health.ErroredFeeds))

	degraded := 0.0
	if snap.Health.State == domain.HealthDegraded {
		degraded = 1
	}

	observability.Degraded.Set(degraded)
}

// mergeStatuses replaces the records of updated feeds and keeps the rest.
func mergeStatuses(current, updated []domain.FeedStatus) []domain.FeedStatus {
	byID := make(map[string]domain.FeedStatus, len(updated))
	for _, s := range updated {
		byID[s.FeedID] = s
	}

	out := make([]domain.FeedStatus, 0, len(current))

	for _, s := range current {
		if u, ok := byID[s.FeedID]; ok {
			out = append(out, u)
			delete(byID, s.FeedID)

			continue
		}

		out = append(out, s)
	}

	for _, s := range updated {
		if _, ok := byID[s.FeedID]; ok {
			out = append(out, s)
		}
	}

	return out
}

// Statuses returns the feed status records of the current snapshot with
// the stale flag evaluated now.
func (e *Engine) Statuses() []domain.FeedStatus {
	current := e.snapshot.Load().Statuses
	out := make([]domain.FeedStatus, len(current))
	copy(out, current)

	now := e.now()

	for i := range out {
		if out[i].Errored() || out[i].ServedFromCache {
			continue
		}

		if feed, ok := e.feeds.Get(out[i].FeedID); ok {
			out[i].Stale = domain.IsStale(feed.TTL(), out[i].FetchedAt, now)
		}
	}

	return out
}
