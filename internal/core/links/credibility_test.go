package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredibilityRankerTier(t *testing.T) {
	ranker := NewCredibilityRanker("localwire.example", " Regional.Example ,")

	tests := []struct {
		name string
		url  string
		want int
	}{
		{name: "gov domain", url: "https://www.weather.gov/alerts", want: TierOfficial},
		{name: "gov second level", url: "https://www.gov.uk/news", want: TierOfficial},
		{name: "gov country pair", url: "https://gov.pl/web/x", want: TierOfficial},
		{name: "gov nested label", url: "https://service.gov.au/x", want: TierOfficial},
		{name: "gov leading label only", url: "https://gov.example.com/x", want: TierOther},
		{name: "gov inside label", url: "https://govtrack.example/x", want: TierOther},
		{name: "mil domain", url: "https://army.mil/article/1", want: TierOfficial},
		{name: "edu domain", url: "https://news.mit.edu/2026/x", want: TierOfficial},
		{name: "tier1 wire", url: "https://www.reuters.com/world/x", want: TierOfficial},
		{name: "tier1 subdomain", url: "https://uk.reuters.com/x", want: TierOfficial},
		{name: "tier2 outlet", url: "https://edition.cnn.com/x", want: TierMajor},
		{name: "extra tier1", url: "https://localwire.example/a", want: TierOfficial},
		{name: "extra tier2", url: "https://regional.example/a", want: TierMajor},
		{name: "unknown blog", url: "https://someblog.example.net/post", want: TierOther},
		{name: "empty", url: "", want: TierOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ranker.Tier(tt.url))
		})
	}
}
