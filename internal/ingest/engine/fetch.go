package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
)

const (
	cacheFresh  = "fresh"
	cacheStale  = "stale"
	cacheMiss   = "miss"
	cacheForced = "forced"
)

// FeedOutcome is the settled result of one feed task.
type FeedOutcome struct {
	Feed   domain.FeedDescriptor
	Result domain.FetchResult
	Status domain.FeedStatus
	Items  []domain.NormalizedItem
}

// FetchAll runs one task per feed concurrently and waits for all of them.
// A failing or panicking task yields an errored outcome for its feed only.
func (e *Engine) FetchAll(ctx context.Context, feeds []domain.FeedDescriptor, force bool) []FeedOutcome {
	outcomes := make([]FeedOutcome, len(feeds))

	var g errgroup.Group

	for i, feed := range feeds {
		g.Go(func() error {
			outcomes[i] = e.fetchFeedSafe(ctx, feed, "", force)
			return nil
		})
	}

	_ = g.Wait()

	return outcomes
}

// FetchOne fetches a single feed by id, optionally with a query. Unknown ids
// yield an unknown_feed result without any network call. Identical requests
// in flight share one fetch, detached from any single caller's cancellation.
func (e *Engine) FetchOne(ctx context.Context, feedID, query string, force bool) FeedOutcome {
	feed, ok := e.feeds.Get(feedID)
	if !ok {
		now := e.now()
		result := domain.FetchResult{
			FeedID:       feedID,
			Query:        query,
			FetchedAt:    now,
			ErrorKind:    domain.ErrorUnknownFeed,
			ErrorMessage: fmt.Sprintf("feed %q is not in the registry", feedID),
		}

		return FeedOutcome{
			Feed:   domain.FeedDescriptor{ID: feedID},
			Result: result,
			Status: domain.FeedStatus{FeedID: feedID, ErrorKind: result.ErrorKind, ErrorMessage: result.ErrorMessage, FetchedAt: now},
		}
	}

	key := fmt.Sprintf("%s\x00%s\x00%t", feed.ID, query, force)

	v, _, _ := e.previews.Do(key, func() (any, error) {
		return e.fetchFeedSafe(context.WithoutCancel(ctx), feed, query, force), nil
	})

	out, _ := v.(FeedOutcome)

	return out
}

func (e *Engine) fetchFeedSafe(ctx context.Context, feed domain.FeedDescriptor, query string, force bool) (out FeedOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str(logFieldFeed, feed.ID).Msg("feed task panicked")
			observability.FeedErrors.WithLabelValues(feed.ID, string(domain.ErrorFetchFailed)).Inc()

			now := e.now()
			out = FeedOutcome{
				Feed: feed,
				Result: domain.FetchResult{
					FeedID:       feed.ID,
					FetchedAt:    now,
					ErrorKind:    domain.ErrorFetchFailed,
					ErrorMessage: fmt.Sprintf("internal error: %v", r),
				},
			}
			out.Status = e.status(feed, out.Result, 0, false, now)
		}
	}()

	return e.fetchFeed(ctx, feed, query, force)
}

// fetchFeed serves a fresh cache entry unless forced, else fetches. When the
// fetch fails, items are rebuilt from the last good cached body.
func (e *Engine) fetchFeed(ctx context.Context, feed domain.FeedDescriptor, query string, force bool) FeedOutcome {
	ttl := feed.TTL()

	if !force {
		if entry, ok := e.cache.Fresh(feed.ID, query, ttl); ok {
			observability.CacheLookups.WithLabelValues(cacheFresh).Inc()

			items := e.items(feed, entry.Result.RawBody)

			return FeedOutcome{
				Feed:   feed,
				Result: entry.Result,
				Items:  items,
				Status: e.status(feed, entry.Result, len(items), false, e.now()),
			}
		}
	}

	lookup := cacheMiss
	if force {
		lookup = cacheForced
	}

	observability.CacheLookups.WithLabelValues(lookup).Inc()

	result := e.fetcher.Fetch(ctx, feed, query)
	now := e.now()

	if result.OK() {
		e.cache.Put(feed.ID, query, result)
		items := e.items(feed, result.RawBody)

		return FeedOutcome{Feed: feed, Result: result, Items: items, Status: e.status(feed, result, len(items), false, now)}
	}

	out := FeedOutcome{Feed: feed, Result: result}

	if entry, ok := e.cache.Get(feed.ID, query); ok {
		observability.CacheLookups.WithLabelValues(cacheStale).Inc()

		out.Items = e.items(feed, entry.Result.RawBody)
		out.Status = e.status(feed, result, len(out.Items), true, now)
		out.Status.Stale = domain.IsStale(ttl, entry.Result.FetchedAt, now)

		return out
	}

	out.Status = e.status(feed, result, 0, false, now)

	return out
}

func (e *Engine) items(feed domain.FeedDescriptor, body []byte) []domain.NormalizedItem {
	if len(body) == 0 {
		return nil
	}

	return e.normalizer.Normalize(e.parser.Parse(feed, body))
}

func (e *Engine) status(feed domain.FeedDescriptor, result domain.FetchResult, count int, fromCache bool, now time.Time) domain.FeedStatus {
	s := domain.FeedStatus{
		FeedID:          feed.ID,
		Name:            feed.DisplayName(),
		Category:        feed.Category,
		HTTPStatus:      result.HTTPStatus,
		ErrorKind:       result.ErrorKind,
		ErrorMessage:    result.ErrorMessage,
		FetchedAt:       result.FetchedAt,
		Count:           count,
		Critical:        feed.Critical,
		ServedFromCache: fromCache,
		FallbackUsed:    result.FallbackUsed,
	}

	if result.OK() {
		s.Stale = result.Stale(feed.TTL(), now)
	}

	return s
}
