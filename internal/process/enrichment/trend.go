package enrichment

import (
	"time"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/process/dedup"
)

const (
	spikingMinSources = 6
	spikingMaxAge     = 2 * time.Hour
	broadMinSources   = 4
	freshMaxAge       = time.Hour
)

// Trend labels a story by its cluster coverage and age.
func Trend(sourceCount int, updatedAt int64, now time.Time) string {
	age := now.Sub(time.UnixMilli(updatedAt))

	switch {
	case sourceCount >= spikingMinSources && age < spikingMaxAge:
		return domain.TrendSpiking
	case sourceCount >= broadMinSources:
		return domain.TrendBroad
	case age < freshMaxAge:
		return domain.TrendFresh
	default:
		return ""
	}
}

// ApplyTrends labels every clustered news item, inside the clusters and in
// the flat item list, with the trend of its cluster.
func ApplyTrends(items []domain.NormalizedItem, clusters []domain.NewsCluster, now time.Time) {
	byKey := make(map[string]string)

	for ci := range clusters {
		c := &clusters[ci]
		trend := Trend(c.SourceCount(), c.UpdatedAt, now)

		c.PrimaryItem.Trend = trend

		for mi := range c.Members {
			c.Members[mi].Trend = trend

			if k := dedup.SeenKey(c.Members[mi]); k != "" {
				byKey[k] = trend
			}
		}
	}

	for i := range items {
		if items[i].Category != domain.CategoryNews {
			continue
		}

		if trend, ok := byKey[dedup.SeenKey(items[i])]; ok {
			items[i].Trend = trend
		}
	}
}
