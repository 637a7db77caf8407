package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

func TestCacheFreshness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New()
	c.now = func() time.Time { return now }

	c.Put("usgs", "", domain.FetchResult{FeedID: "usgs", FetchedAt: now.Add(-10 * time.Minute)})

	entry, ok := c.Get("usgs", "")
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, entry.Age)

	_, ok = c.Fresh("usgs", "", 30*time.Minute)
	assert.True(t, ok)

	_, ok = c.Fresh("usgs", "", 10*time.Minute)
	assert.False(t, ok, "an entry exactly ttl old is not fresh")

	_, ok = c.Get("usgs", "other-query")
	assert.False(t, ok)
}

func TestCachePutOverwrites(t *testing.T) {
	c := New()

	c.Put("gdelt", "flood", domain.FetchResult{FeedID: "gdelt", HTTPStatus: 200, RawBody: []byte("old")})
	c.Put("gdelt", "flood", domain.FetchResult{FeedID: "gdelt", HTTPStatus: 200, RawBody: []byte("new")})
	c.Put("gdelt", "", domain.FetchResult{FeedID: "gdelt"})

	entry, ok := c.Get("gdelt", "flood")
	require.True(t, ok)
	assert.Equal(t, "new", string(entry.Result.RawBody))
	assert.False(t, entry.Result.FetchedAt.IsZero())
	assert.Equal(t, 2, c.Len())
}
