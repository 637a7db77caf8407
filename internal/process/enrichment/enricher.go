// Package enrichment normalizes parser output and runs category-specific
// inference over it: canonical URLs, language flags, credibility tiers,
// severity and region extraction, cross-feed dedupe keys and trends.
package enrichment

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/core/links"
)

const (
	logKeyFeed  = "feed"
	logKeyItems = "items"
)

// Enricher normalizes items in place of the parser output. It holds only
// read-only state and is safe for concurrent use.
type Enricher struct {
	credibility *links.CredibilityRanker
	logger      *zerolog.Logger
}

// New creates an Enricher.
func New(credibility *links.CredibilityRanker, logger *zerolog.Logger) *Enricher {
	if credibility == nil {
		credibility = links.NewCredibilityRanker("", "")
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Enricher{credibility: credibility, logger: logger}
}

// Normalize returns a normalized copy of items. The input slice is not
// modified.
func (e *Enricher) Normalize(items []domain.NormalizedItem) []domain.NormalizedItem {
	out := make([]domain.NormalizedItem, len(items))

	for i, item := range items {
		out[i] = e.normalize(item)
	}

	if len(out) > 0 {
		e.logger.Debug().Str(logKeyFeed, out[0].FeedID).Int(logKeyItems, len(out)).Msg("normalized feed items")
	}

	return out
}

func (e *Enricher) normalize(item domain.NormalizedItem) domain.NormalizedItem {
	item.URL = links.Canonicalize(item.URL)
	item.IsNonEnglish = links.IsNonEnglish(item.Title + " " + item.Summary)

	switch item.Category {
	case domain.CategoryNews:
		item.CredibilityTier = e.credibility.Tier(item.URL)
	case domain.CategoryTravel:
		inferTravel(&item)
	case domain.CategoryCyber:
		inferCyber(&item)
	case domain.CategoryResearch:
		inferResearch(&item)
	case domain.CategoryDisaster, domain.CategoryWeather, domain.CategorySpace:
		if item.DedupeKey == "" && item.AlertType != "" {
			item.DedupeKey = hazardKey(item)
		}
	}

	if item.RegionTag == "" {
		item.RegionTag = regionFromText(item.Location, item.Title)
	}

	return item
}

// hazardKey merges the same hazard reported by several feeds.
func hazardKey(item domain.NormalizedItem) string {
	parts := []string{item.AlertType, strings.TrimSpace(item.Title), strings.TrimSpace(item.Location)}

	return strings.ToLower(strings.Join(parts, "|"))
}
