// Package clustering groups news items that report the same story.
//
// Matching is greedy and single-link: each item joins the first existing
// cluster (in creation order) that already holds its canonical URL or whose
// title token set is similar enough, else it founds a new cluster. The
// result depends on input order.
package clustering

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/core/links"
	"github.com/lueurxax/signal-ingest/internal/core/textnorm"
)

// DefaultSimilarityThreshold is the Jaccard score a title must exceed to
// join a cluster.
const DefaultSimilarityThreshold = 0.72

const (
	logFieldItems    = "items"
	logFieldClusters = "clusters"
)

// Clusterer builds news clusters. It is stateless between calls.
type Clusterer struct {
	threshold float64
	newID     func() string
	logger    *zerolog.Logger
}

// New creates a Clusterer. A threshold outside (0, 1] falls back to the
// default.
func New(threshold float64, logger *zerolog.Logger) *Clusterer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Clusterer{
		threshold: threshold,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// Threshold returns the Jaccard threshold in use.
func (c *Clusterer) Threshold() float64 {
	return c.threshold
}

// Cluster groups items and returns the clusters sorted by UpdatedAt,
// newest first.
func (c *Clusterer) Cluster(items []domain.NormalizedItem) []domain.NewsCluster {
	clusters := make([]*domain.NewsCluster, 0, len(items))

	for _, item := range items {
		canonical := links.Canonicalize(item.URL)
		tokens := textnorm.TokenSet(item.Title)

		if target := c.match(clusters, canonical, tokens); target != nil {
			join(target, item, canonical)
			continue
		}

		clusters = append(clusters, c.found(item, canonical, tokens))
	}

	out := make([]domain.NewsCluster, len(clusters))
	for i, cl := range clusters {
		out[i] = *cl
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })

	c.logger.Debug().Int(logFieldItems, len(items)).Int(logFieldClusters, len(out)).Msg("news clustering done")

	return out
}

func (c *Clusterer) match(clusters []*domain.NewsCluster, canonical string, tokens map[string]struct{}) *domain.NewsCluster {
	for _, cl := range clusters {
		if canonical != "" {
			if _, ok := cl.CanonicalURLSet[canonical]; ok {
				return cl
			}
		}

		// Identical token sets always match, even at threshold 1.
		if sim := textnorm.Jaccard(tokens, cl.TokenSet); sim == 1 || sim > c.threshold {
			return cl
		}
	}

	return nil
}

func (c *Clusterer) found(item domain.NormalizedItem, canonical string, tokens map[string]struct{}) *domain.NewsCluster {
	cl := &domain.NewsCluster{
		ID:              c.newID(),
		PrimaryItem:     item,
		Members:         []domain.NormalizedItem{item},
		UpdatedAt:       item.PublishedAt,
		SourceSet:       make(map[string]struct{}),
		CanonicalURLSet: make(map[string]struct{}),
		TokenSet:        tokens,
	}

	addKeys(cl, item, canonical)

	return cl
}

func join(cl *domain.NewsCluster, item domain.NormalizedItem, canonical string) {
	cl.Members = append(cl.Members, item)
	addKeys(cl, item, canonical)

	if item.PublishedAt > cl.UpdatedAt {
		cl.PrimaryItem = item
		cl.UpdatedAt = item.PublishedAt
	}
}

func addKeys(cl *domain.NewsCluster, item domain.NormalizedItem, canonical string) {
	if source := sourceKey(item); source != "" {
		cl.SourceSet[source] = struct{}{}
	}

	if canonical != "" {
		cl.CanonicalURLSet[canonical] = struct{}{}
	}
}

// sourceKey identifies the outlet of an item: its source name, else its
// domain.
func sourceKey(item domain.NormalizedItem) string {
	if item.Source != "" {
		return item.Source
	}

	return links.Domain(item.URL)
}
