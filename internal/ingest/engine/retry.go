package engine

import (
	"context"
	"time"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
	"github.com/lueurxax/signal-ingest/internal/process/dedup"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
)

// Retry pass kinds.
const (
	RetryKindFailed = "failed"
	RetryKindStale  = "stale"
)

const (
	retryOutcomeRan      = "ran"
	retryOutcomeIdle     = "nothing_to_do"
	retryOutcomeBusy     = "busy"
	retryOutcomeGated    = "gated"
	retryOutcomeDisabled = "disabled"
)

// FailedFeeds returns the errored feeds of the current snapshot when at
// least one of them is critical, else nil.
func (e *Engine) FailedFeeds() []domain.FeedDescriptor {
	statuses := e.snapshot.Load().Statuses

	anyCritical := false

	for _, s := range statuses {
		if s.Critical && s.Errored() {
			anyCritical = true
			break
		}
	}

	if !anyCritical {
		return nil
	}

	var feeds []domain.FeedDescriptor

	for _, s := range statuses {
		if !s.Errored() {
			continue
		}

		if feed, ok := e.feeds.Get(s.FeedID); ok {
			feeds = append(feeds, feed)
		}
	}

	return feeds
}

// StaleFeeds returns feeds whose last fetch succeeded but whose cached
// result is older than ttl plus the stale retry buffer.
func (e *Engine) StaleFeeds(now time.Time) []domain.FeedDescriptor {
	var feeds []domain.FeedDescriptor

	for _, s := range e.snapshot.Load().Statuses {
		if s.Errored() {
			continue
		}

		feed, ok := e.feeds.Get(s.FeedID)
		if !ok {
			continue
		}

		entry, ok := e.cache.Get(feed.ID, "")
		if !ok {
			continue
		}

		if domain.NeedsStaleRetry(feed.TTL(), entry.Result.FetchedAt, now) {
			feeds = append(feeds, feed)
		}
	}

	return feeds
}

// RetryFailed re-fetches errored feeds with force when a critical feed is
// errored and merges the new items into the current collection. It returns
// the number of items added.
func (e *Engine) RetryFailed(ctx context.Context) (int, error) {
	if !e.RetriesEnabled() {
		observability.RetryPasses.WithLabelValues(RetryKindFailed, retryOutcomeDisabled).Inc()
		return 0, apperrors.ErrRetryDisabled
	}

	if !e.retryBusy.CompareAndSwap(false, true) {
		observability.RetryPasses.WithLabelValues(RetryKindFailed, retryOutcomeBusy).Inc()
		return 0, apperrors.ErrRetryInProgress
	}
	defer e.retryBusy.Store(false)

	return e.retry(ctx, RetryKindFailed, e.FailedFeeds())
}

// RetryStale re-fetches feeds that outlived ttl plus buffer. Passes are
// spaced by at least the stale retry gate.
func (e *Engine) RetryStale(ctx context.Context) (int, error) {
	if !e.RetriesEnabled() {
		observability.RetryPasses.WithLabelValues(RetryKindStale, retryOutcomeDisabled).Inc()
		return 0, apperrors.ErrRetryDisabled
	}

	now := e.now()

	if last := e.lastStaleRetry.Load(); last != 0 && now.Sub(time.Unix(0, last)) < e.staleRetryGate {
		observability.RetryPasses.WithLabelValues(RetryKindStale, retryOutcomeGated).Inc()
		return 0, apperrors.ErrRetryGated
	}

	if !e.retryBusy.CompareAndSwap(false, true) {
		observability.RetryPasses.WithLabelValues(RetryKindStale, retryOutcomeBusy).Inc()
		return 0, apperrors.ErrRetryInProgress
	}
	defer e.retryBusy.Store(false)

	e.lastStaleRetry.Store(now.UnixNano())

	return e.retry(ctx, RetryKindStale, e.StaleFeeds(now))
}

func (e *Engine) retry(ctx context.Context, kind string, feeds []domain.FeedDescriptor) (int, error) {
	if len(feeds) == 0 {
		observability.RetryPasses.WithLabelValues(kind, retryOutcomeIdle).Inc()
		return 0, nil
	}

	outcomes := e.FetchAll(ctx, feeds, true)

	var incoming []domain.NormalizedItem

	statuses := make([]domain.FeedStatus, 0, len(outcomes))

	for _, o := range outcomes {
		incoming = append(incoming, o.Items...)
		statuses = append(statuses, o.Status)
	}

	e.geocode(ctx, incoming)

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	cur := e.snapshot.Load()
	merged, added := dedup.MergeNew(cur.Items, incoming)

	snap := e.build(merged, mergeStatuses(cur.Statuses, statuses))
	e.publish(snap)

	observability.RetryPasses.WithLabelValues(kind, retryOutcomeRan).Inc()

	e.logger.Info().
		Str(logFieldKind, kind).
		Int(logFieldFeeds, len(feeds)).
		Int(logFieldAdded, added).
		Int(logFieldErrored, snap.Health.ErroredFeeds).
		Msg("retry pass merged")

	return added, nil
}
