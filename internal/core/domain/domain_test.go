package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 60 * time.Minute

	assert.True(t, IsStale(ttl, now.Add(-70*time.Minute), now))
	assert.False(t, IsStale(ttl, now.Add(-50*time.Minute), now))
}

func TestStaleRetryBuffer(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{name: "short ttl clamps to minimum", ttl: 10 * time.Minute, want: 5 * time.Minute},
		{name: "mid ttl uses ratio", ttl: 60 * time.Minute, want: 12 * time.Minute},
		{name: "long ttl clamps to maximum", ttl: 6 * time.Hour, want: 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StaleRetryBuffer(tt.ttl))
		})
	}
}

func TestNeedsStaleRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 30 * time.Minute

	assert.False(t, NeedsStaleRetry(ttl, now.Add(-34*time.Minute), now))
	assert.False(t, NeedsStaleRetry(ttl, now.Add(-36*time.Minute), now), "age equal to ttl+buffer is not past it")
	assert.True(t, NeedsStaleRetry(ttl, now.Add(-37*time.Minute), now))
}

func TestProxyStrategyRewrite(t *testing.T) {
	target := "https://example.com/feed?a=1&b=2"

	escaped := ProxyStrategy{Name: "a", Template: "https://relay.test/get?url={url}"}
	assert.Equal(t, "https://relay.test/get?url=https%3A%2F%2Fexample.com%2Ffeed%3Fa%3D1%26b%3D2", escaped.Rewrite(target))

	raw := ProxyStrategy{Name: "b", Template: "https://relay.test/{rawurl}"}
	assert.Equal(t, "https://relay.test/https://example.com/feed?a=1&b=2", raw.Rewrite(target))
}

func TestHTTPErrorKind(t *testing.T) {
	kind := HTTPErrorKind(503)

	assert.Equal(t, ErrorKind("http_503"), kind)
	assert.True(t, kind.IsHTTP())
	assert.False(t, ErrorInvalidRSS.IsHTTP())
}

func TestBuildHealthCountsCriticalOnly(t *testing.T) {
	statuses := []FeedStatus{
		{FeedID: "a", Critical: true},
		{FeedID: "b", ErrorKind: HTTPErrorKind(500)},
		{FeedID: "c", Stale: true},
	}

	report := BuildHealth(statuses)
	assert.Equal(t, HealthHealthy, report.State)
	assert.Equal(t, 1, report.ErroredFeeds)
	assert.Equal(t, 1, report.StaleFeeds)

	statuses[0].ErrorKind = ErrorFetchFailed
	report = BuildHealth(statuses)
	assert.Equal(t, HealthDegraded, report.State)
	assert.Equal(t, []string{"a"}, report.CriticalErrors)
}

func TestFeedStatusMessagePrefersUpstream(t *testing.T) {
	s := FeedStatus{ErrorKind: HTTPErrorKind(429)}
	assert.Equal(t, "http_429", s.Message())

	s.ErrorMessage = "Rate limit exceeded"
	assert.Equal(t, "Rate limit exceeded", s.Message())
}

func TestFeedDescriptorDefaults(t *testing.T) {
	f := FeedDescriptor{ID: "x"}

	assert.Equal(t, 30*time.Minute, f.TTL())
	assert.Equal(t, 5*time.Second, f.Timeout(5*time.Second))
	assert.Equal(t, "x", f.DisplayName())
	assert.Empty(t, f.EffectiveQuery("ignored"))

	f.SupportsQuery = true
	f.DefaultQuery = "earthquake"
	assert.Equal(t, "earthquake", f.EffectiveQuery(" "))
	assert.Equal(t, "flood", f.EffectiveQuery("flood"))
}
