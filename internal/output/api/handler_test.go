package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/ingest/engine"
	"github.com/lueurxax/signal-ingest/internal/process/geocluster"
)

const testTrigger = "manual"

type fakeReader struct {
	snap     *engine.Snapshot
	viewport geocluster.Viewport
	radius   float64
}

func (f *fakeReader) Snapshot() *engine.Snapshot { return f.snap }

func (f *fakeReader) Statuses() []domain.FeedStatus { return f.snap.Statuses }

func (f *fakeReader) DrawMap(v geocluster.Viewport, pixelRadius float64) ([]domain.MapCluster, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	f.viewport = v
	f.radius = pixelRadius

	return []domain.MapCluster{{ID: "m1", Radius: 5}}, nil
}

func (f *fakeReader) FetchOne(_ context.Context, feedID, query string, _ bool) engine.FeedOutcome {
	if feedID != "alpha" {
		return engine.FeedOutcome{Result: domain.FetchResult{FeedID: feedID, ErrorKind: domain.ErrorUnknownFeed}}
	}

	return engine.FeedOutcome{
		Result: domain.FetchResult{FeedID: feedID, Query: query, HTTPStatus: http.StatusOK},
		Items:  []domain.NormalizedItem{{Title: "one"}},
	}
}

type fakeRefresher struct {
	calls   int
	force   bool
	trigger string
	snap    *engine.Snapshot
}

func (f *fakeRefresher) Refresh(_ context.Context, trigger string, force bool) (*engine.Snapshot, error) {
	f.calls++
	f.force = force
	f.trigger = trigger

	return f.snap, nil
}

func newTestHandler() (*Handler, *fakeReader, *fakeRefresher) {
	snap := &engine.Snapshot{
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Items: []domain.NormalizedItem{
			{Title: "Storm hits coast", Category: domain.CategoryNews},
			{Title: "M5.1 quake", Category: domain.CategoryDisaster},
		},
		Clusters: []domain.NewsCluster{{
			ID:        "c1",
			SourceSet: map[string]struct{}{"Reuters": {}, "AP": {}},
		}},
		Statuses: []domain.FeedStatus{
			{FeedID: "alpha", Critical: true, ErrorKind: domain.HTTPErrorKind(http.StatusBadGateway)},
			{FeedID: "bravo", Count: 1},
		},
	}

	reader := &fakeReader{snap: snap}
	refresher := &fakeRefresher{snap: snap}

	return NewHandler(reader, refresher, testTrigger, nil), reader, refresher
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()

	require.Equal(t, contentTypeJSON, rec.Header().Get(headerContentType))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestFeedsReportsHealth(t *testing.T) {
	h, _, _ := newTestHandler()

	rec := serve(h, http.MethodGet, "/api/feeds")
	require.Equal(t, http.StatusOK, rec.Code)

	var body feedsResponse
	decode(t, rec, &body)

	assert.Equal(t, domain.HealthDegraded, body.Health.State)
	assert.Equal(t, []string{"alpha"}, body.Health.CriticalErrors)
	assert.Len(t, body.Feeds, 2)
}

func TestItemsFiltersByCategory(t *testing.T) {
	h, _, _ := newTestHandler()

	tests := []struct {
		target string
		want   int
	}{
		{target: "/api/items", want: 2},
		{target: "/api/items?category=news", want: 1},
		{target: "/api/items?category=DISASTER", want: 1},
		{target: "/api/items?category=space", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var body itemsResponse
			decode(t, rec, &body)

			assert.Equal(t, tt.want, body.Count)
			assert.NotNil(t, body.Items)
		})
	}
}

func TestClustersIncludeSources(t *testing.T) {
	h, _, _ := newTestHandler()

	rec := serve(h, http.MethodGet, "/api/clusters")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Body.String(), `"sources":["AP","Reuters"]`)
}

func TestMapParsesViewport(t *testing.T) {
	h, reader, _ := newTestHandler()

	rec := serve(h, http.MethodGet, "/api/map?west=-10&south=35&east=30&north=60&width=800&height=600&radius=30")
	require.Equal(t, http.StatusOK, rec.Code)

	var body mapResponse
	decode(t, rec, &body)

	require.Len(t, body.Clusters, 1)
	assert.Equal(t, geocluster.Viewport{West: -10, South: 35, East: 30, North: 60, Width: 800, Height: 600}, reader.viewport)
	assert.InDelta(t, 30, reader.radius, 1e-9)
}

func TestMapRejectsBadInput(t *testing.T) {
	h, _, _ := newTestHandler()

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing params", target: "/api/map?west=1"},
		{name: "not a number", target: "/api/map?west=a&south=0&east=1&north=1&width=10&height=10"},
		{name: "inverted", target: "/api/map?west=0&south=10&east=1&north=0&width=10&height=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorResponse
			decode(t, rec, &body)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestFeedFetchOne(t *testing.T) {
	h, _, _ := newTestHandler()

	rec := serve(h, http.MethodGet, "/api/feed?id=alpha&q=ukraine")
	require.Equal(t, http.StatusOK, rec.Code)

	var body feedResponse
	decode(t, rec, &body)
	assert.Equal(t, "ukraine", body.Result.Query)
	assert.Len(t, body.Items, 1)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/feed?id=nope").Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/api/feed").Code)
}

func TestRefreshTriggersAndLimits(t *testing.T) {
	h, _, refresher := newTestHandler()

	rec := serve(h, http.MethodPost, "/api/refresh?force=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var body refreshResponse
	decode(t, rec, &body)

	assert.Equal(t, 2, body.Items)
	assert.True(t, refresher.force)
	assert.Equal(t, testTrigger, refresher.trigger)

	for i := 0; i < refreshLimitBurst; i++ {
		serve(h, http.MethodPost, "/api/refresh")
	}

	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodPost, "/api/refresh").Code)
	assert.Equal(t, refreshLimitBurst, refresher.calls)
}

func TestRefreshRequiresPost(t *testing.T) {
	h, _, refresher := newTestHandler()

	rec := serve(h, http.MethodGet, "/api/refresh")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, refresher.calls)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", strings.NewReader(""))
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", getClientIP(r))
}
