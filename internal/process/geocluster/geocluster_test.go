package geocluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
)

func geoItem(title, category, alert string, lat, lon float64) domain.NormalizedItem {
	return domain.NormalizedItem{
		Title:     title,
		Category:  category,
		AlertType: alert,
		Geo:       &domain.GeoPoint{Lat: lat, Lon: lon},
	}
}

func TestFortyNearbyPointsCollapse(t *testing.T) {
	points := make([]Point, 0, 40)

	for i := 0; i < 40; i++ {
		points = append(points, Point{
			X:    100 + float64(i%8)*1.5,
			Y:    200 + float64(i/8)*1.5,
			Item: domain.NormalizedItem{Title: fmt.Sprintf("p%d", i), Category: domain.CategoryDisaster},
		})
	}

	clusters := ClusterPoints(points, DefaultPixelRadius)
	require.Len(t, clusters, 1)
	assert.Equal(t, 40, clusters[0].MemberCount())
	assert.InDelta(t, 16.0, clusters[0].Radius, 1e-9)
	assert.Equal(t, domain.CategoryDisaster, clusters[0].DominantLayer)
	assert.NotEmpty(t, clusters[0].ID)
}

func TestClusterPointsRunningMean(t *testing.T) {
	points := []Point{
		{X: 0, Y: 0, Item: geoItem("a", "weather", "Weather", 10, 20)},
		{X: 18, Y: 0, Item: geoItem("b", "disaster", "Earthquake", 12, 22)},
		{X: 30, Y: 0, Item: geoItem("c", "disaster", "Earthquake", 14, 24)},
		{X: 200, Y: 200, Item: geoItem("d", "news", "", 50, 50)},
	}

	clusters := ClusterPoints(points, 24)
	require.Len(t, clusters, 2)

	first := clusters[0]
	assert.Equal(t, 3, first.MemberCount(), "c is 30px from a but within 24px of the moved centroid")
	assert.InDelta(t, 16.0, first.X, 1e-9)
	assert.InDelta(t, 0.0, first.Y, 1e-9)
	assert.InDelta(t, 12.0, first.Lat, 1e-9)
	assert.InDelta(t, 22.0, first.Lon, 1e-9)
	assert.Equal(t, "disaster", first.DominantLayer)
	assert.Equal(t, "Earthquake", first.DominantType)
	assert.InDelta(t, MarkerRadius(3), first.Radius, 1e-9)

	second := clusters[1]
	assert.Equal(t, 1, second.MemberCount())
	assert.Equal(t, "news", second.DominantType)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestClusterPointsTieGoesToFirstLabel(t *testing.T) {
	points := []Point{
		{X: 0, Y: 0, Item: geoItem("a", "weather", "", 0, 0)},
		{X: 1, Y: 1, Item: geoItem("b", "space", "", 0, 0)},
	}

	clusters := ClusterPoints(points, 24)
	require.Len(t, clusters, 1)
	assert.Equal(t, "weather", clusters[0].DominantLayer)
}

func TestMarkerRadius(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{n: 1, want: 6},
		{n: 4, want: 8},
		{n: 16, want: 12},
		{n: 36, want: 16},
		{n: 1000, want: 16},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, MarkerRadius(tt.n), 1e-9, "n=%d", tt.n)
	}
}

func TestProject(t *testing.T) {
	world := Viewport{West: -180, South: -maxMercatorLat, East: 180, North: maxMercatorLat, Width: 360, Height: 360}

	x, y := world.Project(0, 0)
	assert.InDelta(t, 180.0, x, 1e-6)
	assert.InDelta(t, 180.0, y, 1e-6)

	x, y = world.Project(maxMercatorLat, -180)
	assert.InDelta(t, 0.0, x, 1e-6)
	assert.InDelta(t, 0.0, y, 1e-6)

	_, yNorth := world.Project(60, 0)
	_, yMid := world.Project(30, 0)
	assert.Less(t, yNorth, yMid)
	assert.Greater(t, yMid-yNorth, 0.0)

	pacific := Viewport{West: 170, South: -10, East: -170, North: 10, Width: 400, Height: 400}
	x, _ = pacific.Project(0, 175)
	assert.InDelta(t, 100.0, x, 1e-6)

	x, _ = pacific.Project(0, -175)
	assert.InDelta(t, 300.0, x, 1e-6)
}

func TestViewportValidate(t *testing.T) {
	tests := []struct {
		name string
		v    Viewport
		ok   bool
	}{
		{name: "valid", v: Viewport{West: -10, South: -10, East: 10, North: 10, Width: 100, Height: 100}, ok: true},
		{name: "antimeridian", v: Viewport{West: 170, South: -10, East: -170, North: 10, Width: 100, Height: 100}, ok: true},
		{name: "no pixels", v: Viewport{West: -10, South: -10, East: 10, North: 10}},
		{name: "inverted lat", v: Viewport{West: -10, South: 10, East: 10, North: -10, Width: 1, Height: 1}},
		{name: "zero width", v: Viewport{West: 5, South: -10, East: 5, North: 10, Width: 1, Height: 1}},
		{name: "out of range", v: Viewport{West: -200, South: -10, East: 10, North: 10, Width: 1, Height: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, apperrors.ErrInvalidViewport)
		})
	}
}

func TestIndexWithin(t *testing.T) {
	items := []domain.NormalizedItem{
		geoItem("berlin", "news", "", 52.52, 13.40),
		{Title: "no geo"},
		geoItem("paris", "news", "", 48.85, 2.35),
		geoItem("fiji", "disaster", "Earthquake", -17.7, 178.0),
		geoItem("samoa", "disaster", "Earthquake", -13.8, -172.1),
		geoItem("tokyo", "news", "", 35.68, 139.69),
	}

	idx := NewIndex(items)
	assert.Equal(t, 5, idx.Len())

	europe := idx.Within(Viewport{West: -10, South: 35, East: 30, North: 60, Width: 800, Height: 600})
	require.Len(t, europe, 2)
	assert.Equal(t, "berlin", europe[0].Title)
	assert.Equal(t, "paris", europe[1].Title)

	pacific := idx.Within(Viewport{West: 170, South: -30, East: -165, North: 0, Width: 800, Height: 600})
	require.Len(t, pacific, 2)
	assert.Equal(t, "fiji", pacific[0].Title)
	assert.Equal(t, "samoa", pacific[1].Title)
}

func TestDrawMap(t *testing.T) {
	items := []domain.NormalizedItem{
		geoItem("a", "weather", "Weather", 40.00, -105.00),
		geoItem("b", "weather", "Weather", 40.01, -105.01),
		geoItem("c", "disaster", "Wildfire", 34.00, -118.00),
	}

	idx := NewIndex(items)

	zoomedOut := Viewport{West: -125, South: 25, East: -65, North: 50, Width: 600, Height: 400}
	clusters, err := idx.DrawMap(zoomedOut, DefaultPixelRadius)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, 2, clusters[0].MemberCount())
	assert.Equal(t, "Weather", clusters[0].DominantType)
	assert.Equal(t, "Wildfire", clusters[1].DominantType)

	zoomedIn := Viewport{West: -105.02, South: 39.99, East: -104.99, North: 40.02, Width: 1000, Height: 1000}
	clusters, err = idx.DrawMap(zoomedIn, DefaultPixelRadius)
	require.NoError(t, err)
	assert.Len(t, clusters, 2)

	_, err = idx.DrawMap(Viewport{}, DefaultPixelRadius)
	require.ErrorIs(t, err, apperrors.ErrInvalidViewport)
}
