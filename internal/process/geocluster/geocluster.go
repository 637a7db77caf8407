// Package geocluster groups map points in screen space for rendering.
// Clusters are recomputed on every draw and never cached.
package geocluster

import (
	"math"

	"github.com/google/uuid"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

// DefaultPixelRadius is the screen distance within which points merge.
const DefaultPixelRadius = 24.0

const (
	minMarkerRadius   = 4.0
	maxMarkerRadius   = 16.0
	markerRadiusScale = 2.0
)

// Point is an item projected to screen space.
type Point struct {
	X    float64
	Y    float64
	Item domain.NormalizedItem
}

// MarkerRadius returns the rendered radius for a cluster of n points.
func MarkerRadius(n int) float64 {
	return math.Min(maxMarkerRadius, minMarkerRadius+math.Sqrt(float64(n))*markerRadiusScale)
}

type building struct {
	cluster domain.MapCluster
	layers  *tally
	types   *tally
}

// ClusterPoints makes one greedy pass: each point joins the first cluster
// whose running centroid is within pixelRadius, else it starts a new one.
func ClusterPoints(points []Point, pixelRadius float64) []domain.MapCluster {
	if pixelRadius <= 0 {
		pixelRadius = DefaultPixelRadius
	}

	clusters := make([]*building, 0, len(points))

	for _, p := range points {
		target := nearest(clusters, p, pixelRadius)
		if target == nil {
			target = &building{
				cluster: domain.MapCluster{ID: uuid.NewString()},
				layers:  newTally(),
				types:   newTally(),
			}
			clusters = append(clusters, target)
		}

		target.add(p)
	}

	out := make([]domain.MapCluster, len(clusters))

	for i, b := range clusters {
		b.cluster.Radius = MarkerRadius(len(b.cluster.Members))
		b.cluster.DominantLayer = b.layers.mode()
		b.cluster.DominantType = b.types.mode()
		out[i] = b.cluster
	}

	return out
}

func nearest(clusters []*building, p Point, radius float64) *building {
	for _, b := range clusters {
		if math.Hypot(b.cluster.X-p.X, b.cluster.Y-p.Y) <= radius {
			return b
		}
	}

	return nil
}

// add folds p into the running means of the cluster.
func (b *building) add(p Point) {
	c := &b.cluster
	c.Members = append(c.Members, p.Item)
	n := float64(len(c.Members))

	c.X = (c.X*(n-1) + p.X) / n
	c.Y = (c.Y*(n-1) + p.Y) / n

	if p.Item.Geo != nil {
		c.Lat = (c.Lat*(n-1) + p.Item.Geo.Lat) / n
		c.Lon = (c.Lon*(n-1) + p.Item.Geo.Lon) / n
	}

	b.layers.add(p.Item.Category)
	b.types.add(itemType(p.Item))
}

func itemType(item domain.NormalizedItem) string {
	if item.AlertType != "" {
		return item.AlertType
	}

	return item.Category
}

// tally counts labels and remembers first-seen order so ties resolve to the
// earliest label.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	if label == "" {
		return
	}

	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}

	t.counts[label]++
}

func (t *tally) mode() string {
	best, bestCount := "", 0

	for _, label := range t.order {
		if t.counts[label] > bestCount {
			best, bestCount = label, t.counts[label]
		}
	}

	return best
}
