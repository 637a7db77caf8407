package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

func news(title, url, source string, publishedAt int64) domain.NormalizedItem {
	return domain.NormalizedItem{Title: title, URL: url, Source: source, PublishedAt: publishedAt, Category: domain.CategoryNews}
}

func memberTitles(c domain.NewsCluster) []string {
	out := make([]string, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.Title
	}

	return out
}

func isStorm(title string) bool {
	switch title {
	case "Storm hits coast", "Storm slams coastline", "Storm makes landfall", "Storm hits the coast", "Storm hits coast hard":
		return true
	default:
		return false
	}
}

func TestStormAndBudgetNeverMix(t *testing.T) {
	items := []domain.NormalizedItem{
		news("Storm hits coast", "https://a.test/1", "A", 1),
		news("Storm slams coastline", "https://b.test/1", "B", 2),
		news("Unrelated budget vote", "https://c.test/1", "C", 3),
		news("Storm makes landfall", "https://d.test/1", "D", 4),
		news("Budget vote passes", "https://e.test/1", "E", 5),
	}

	clusters := New(DefaultSimilarityThreshold, nil).Cluster(items)
	require.NotEmpty(t, clusters)

	total := 0

	for _, c := range clusters {
		total += len(c.Members)

		storm := isStorm(c.Members[0].Title)
		for _, m := range c.Members {
			assert.Equal(t, storm, isStorm(m.Title), "cluster mixes stories: %v", memberTitles(c))
		}
	}

	assert.Equal(t, len(items), total)
}

func TestClustersAboveThreshold(t *testing.T) {
	items := []domain.NormalizedItem{
		news("Storm hits coast", "https://a.test/1", "A", 100),
		news("Storm hits the coast", "https://b.test/1", "B", 300),
		news("Budget vote passes", "https://c.test/1", "C", 200),
		news("Storm hits coast hard", "https://d.test/1", "D", 150),
		news("Budget vote passes Senate", "https://e.test/1", "E", 250),
	}

	clusters := New(DefaultSimilarityThreshold, nil).Cluster(items)
	require.Len(t, clusters, 2)

	storm, budget := clusters[0], clusters[1]
	assert.Equal(t, []string{"Storm hits coast", "Storm hits the coast", "Storm hits coast hard"}, memberTitles(storm))
	assert.Equal(t, []string{"Budget vote passes", "Budget vote passes Senate"}, memberTitles(budget))

	assert.Equal(t, int64(300), storm.UpdatedAt)
	assert.Equal(t, "Storm hits the coast", storm.PrimaryItem.Title)
	assert.Equal(t, storm.UpdatedAt, storm.PrimaryItem.PublishedAt)
	assert.Equal(t, []string{"A", "B", "D"}, storm.Sources())

	assert.Equal(t, int64(250), budget.UpdatedAt)
	assert.Equal(t, "Budget vote passes Senate", budget.PrimaryItem.Title)
	assert.Equal(t, 2, budget.SourceCount())
}

func TestIdenticalTokenSetsShareCluster(t *testing.T) {
	items := []domain.NormalizedItem{
		news("Port of Rotterdam closed", "https://a.test/1", "A", 1),
		news("Wildfire near Athens", "https://b.test/1", "B", 2),
		news("PORT OF ROTTERDAM, CLOSED!", "https://c.test/1", "C", 3),
	}

	clusters := New(DefaultSimilarityThreshold, nil).Cluster(items)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"Port of Rotterdam closed", "PORT OF ROTTERDAM, CLOSED!"}, memberTitles(clusters[0]))
}

func TestDisjointTitleStartsNewCluster(t *testing.T) {
	items := []domain.NormalizedItem{
		news("Central bank raises rates", "https://a.test/1", "A", 1),
		news("Volcano erupts Iceland", "https://b.test/1", "B", 1),
	}

	clusters := New(DefaultSimilarityThreshold, nil).Cluster(items)
	require.Len(t, clusters, 2)
	assert.NotEqual(t, clusters[0].ID, clusters[1].ID)
}

func TestCanonicalURLJoinsDespiteTitle(t *testing.T) {
	items := []domain.NormalizedItem{
		news("Live: election results", "https://a.test/live?utm_source=x", "A", 1),
		news("Counting continues overnight", "https://a.test/live", "A wire", 2),
	}

	clusters := New(DefaultSimilarityThreshold, nil).Cluster(items)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 2)
	assert.Equal(t, "Counting continues overnight", clusters[0].PrimaryItem.Title)
}

func TestOlderMemberDoesNotPromote(t *testing.T) {
	items := []domain.NormalizedItem{
		news("Storm hits coast", "https://a.test/1", "A", 500),
		news("Storm hits coast", "https://b.test/1", "B", 100),
	}

	clusters := New(DefaultSimilarityThreshold, nil).Cluster(items)
	require.Len(t, clusters, 1)
	assert.Equal(t, int64(500), clusters[0].UpdatedAt)
	assert.Equal(t, "https://a.test/1", clusters[0].PrimaryItem.URL)
}

func TestSourceFallsBackToDomain(t *testing.T) {
	items := []domain.NormalizedItem{
		news("Storm hits coast", "https://www.a.test/1", "", 1),
		news("Storm hits coast", "https://b.test/1", "", 2),
	}

	clusters := New(DefaultSimilarityThreshold, nil).Cluster(items)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"a.test", "b.test"}, clusters[0].Sources())
}

func TestThresholdIsConfigurable(t *testing.T) {
	items := []domain.NormalizedItem{
		news("Storm hits coast", "https://a.test/1", "A", 1),
		news("Storm slams coast", "https://b.test/1", "B", 2),
	}

	assert.Len(t, New(DefaultSimilarityThreshold, nil).Cluster(items), 2)
	assert.Len(t, New(0.4, nil).Cluster(items), 1)
	assert.InDelta(t, DefaultSimilarityThreshold, New(0, nil).Threshold(), 1e-9)
}

func TestOrderDependence(t *testing.T) {
	a := news("alpha beta gamma delta", "https://a.test/1", "A", 1)
	b := news("alpha beta gamma delta epsilon", "https://b.test/1", "B", 2)
	c := news("alpha beta gamma delta epsilon zeta", "https://c.test/1", "C", 3)

	// a~b and b~c exceed the threshold but a~c does not; the founding
	// member's token set decides.
	assert.Len(t, New(DefaultSimilarityThreshold, nil).Cluster([]domain.NormalizedItem{a, b, c}), 2)
	assert.Len(t, New(DefaultSimilarityThreshold, nil).Cluster([]domain.NormalizedItem{b, a, c}), 1)
}

func TestIdenticalTokenSetsAlwaysShareCluster(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		titles    [2]string
	}{
		{name: "stopword only titles", threshold: DefaultSimilarityThreshold, titles: [2]string{"Is it over?", "is it OVER"}},
		{name: "threshold of one", threshold: 1, titles: [2]string{"Storm hits coast", "storm, hits coast!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []domain.NormalizedItem{
				news(tt.titles[0], "https://a.test/1", "A", 1),
				news(tt.titles[1], "https://b.test/2", "B", 2),
			}

			clusters := New(tt.threshold, nil).Cluster(items)
			require.Len(t, clusters, 1)
			assert.Len(t, clusters[0].Members, 2)
		})
	}
}
