// Package dedup removes duplicate signal items by dedupe key.
package dedup

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/core/links"
	"github.com/lueurxax/signal-ingest/internal/core/textnorm"
)

// Log key constants for deduplication.
const (
	logKeySkippedTitle = "skipped_title"
	logKeyDuplicateOf  = "duplicate_of"
	logKeyFeed         = "feed"
)

// Key returns the dedupe key of an item: the explicit override when set,
// else the canonical URL, else the normalized title. An empty key means the
// item cannot be deduplicated.
func Key(item domain.NormalizedItem) string {
	if k := strings.TrimSpace(item.DedupeKey); k != "" {
		return strings.ToLower(k)
	}

	if u := links.Canonicalize(item.URL); u != "" {
		return u
	}

	return textnorm.NormalizedTitle(item.Title)
}

// SeenKey is the key used when merging retried items into an existing
// collection: canonical URL, else normalized title.
func SeenKey(item domain.NormalizedItem) string {
	if u := links.Canonicalize(item.URL); u != "" {
		return u
	}

	return textnorm.NormalizedTitle(item.Title)
}

// Result contains the result of deduplication with metadata.
type Result struct {
	// Items contains the deduplicated items in input order.
	Items []domain.NormalizedItem

	// DroppedCount is the number of items removed as duplicates.
	DroppedCount int
}

// Deduplicate keeps the first item for every key and preserves input order.
// Items with an empty key are always kept.
func Deduplicate(items []domain.NormalizedItem, logger *zerolog.Logger) Result {
	result := Result{Items: make([]domain.NormalizedItem, 0, len(items))}
	kept := make(map[string]string, len(items))

	for _, item := range items {
		key := Key(item)
		if key == "" {
			result.Items = append(result.Items, item)
			continue
		}

		if firstTitle, dup := kept[key]; dup {
			result.DroppedCount++

			if logger != nil {
				logger.Debug().
					Str(logKeySkippedTitle, item.Title).
					Str(logKeyDuplicateOf, firstTitle).
					Str(logKeyFeed, item.FeedID).
					Msg("Dropping duplicate item")
			}

			continue
		}

		kept[key] = item.Title
		result.Items = append(result.Items, item)
	}

	return result
}

// MergeNew appends the items of incoming whose seen key is not yet present
// in existing. Existing items are returned untouched and first.
func MergeNew(existing, incoming []domain.NormalizedItem) ([]domain.NormalizedItem, int) {
	seen := make(map[string]struct{}, len(existing))

	for _, item := range existing {
		if k := SeenKey(item); k != "" {
			seen[k] = struct{}{}
		}
	}

	merged := make([]domain.NormalizedItem, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	added := 0

	for _, item := range incoming {
		k := SeenKey(item)
		if k != "" {
			if _, ok := seen[k]; ok {
				continue
			}

			seen[k] = struct{}{}
		}

		merged = append(merged, item)
		added++
	}

	return merged, added
}
