package geocluster

import (
	"sort"
	"time"

	"github.com/asim/quadtree"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
)

type entry struct {
	pos  int
	item domain.NormalizedItem
}

// Index is a spatial index over the geolocated items of one snapshot.
// It is immutable after construction and safe for concurrent reads.
type Index struct {
	tree  *quadtree.QuadTree
	count int
}

// NewIndex indexes every item that carries a valid coordinate. Points are
// stored as (lat, lon).
func NewIndex(items []domain.NormalizedItem) *Index {
	center := quadtree.NewPoint(0, 0, nil)
	half := quadtree.NewPoint(90, 180, nil)
	tree := quadtree.New(quadtree.NewAABB(center, half), 0, nil)

	idx := &Index{tree: tree}

	for i := range items {
		if !items[i].HasGeo() {
			continue
		}

		e := &entry{pos: i, item: items[i]}
		if tree.Insert(quadtree.NewPoint(e.item.Geo.Lat, e.item.Geo.Lon, e)) {
			idx.count++
		}
	}

	return idx
}

// Len returns the number of indexed items.
func (idx *Index) Len() int {
	return idx.count
}

// Within returns the items inside v in snapshot order.
func (idx *Index) Within(v Viewport) []domain.NormalizedItem {
	var found []*entry

	if v.CrossesAntimeridian() {
		found = append(idx.search(v.South, v.North, v.West, 180), idx.search(v.South, v.North, -180, v.East)...)
	} else {
		found = idx.search(v.South, v.North, v.West, v.East)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	out := make([]domain.NormalizedItem, 0, len(found))
	seen := make(map[int]bool, len(found))

	for _, e := range found {
		if seen[e.pos] {
			continue
		}

		seen[e.pos] = true
		out = append(out, e.item)
	}

	return out
}

func (idx *Index) search(south, north, west, east float64) []*entry {
	center := quadtree.NewPoint((south+north)/2, (west+east)/2, nil)
	half := quadtree.NewPoint((north-south)/2, (east-west)/2, nil)

	points := idx.tree.Search(quadtree.NewAABB(center, half))
	out := make([]*entry, 0, len(points))

	for _, pt := range points {
		if e, ok := pt.Data().(*entry); ok {
			out = append(out, e)
		}
	}

	return out
}

// DrawMap projects the items inside v and clusters them in screen space.
func (idx *Index) DrawMap(v Viewport, pixelRadius float64) ([]domain.MapCluster, error) {
	start := time.Now()
	defer func() {
		observability.MapDrawDuration.Observe(time.Since(start).Seconds())
	}()

	if err := v.Validate(); err != nil {
		return nil, err
	}

	items := idx.Within(v)
	points := make([]Point, len(items))

	for i, item := range items {
		x, y := v.Project(item.Geo.Lat, item.Geo.Lon)
		points[i] = Point{X: x, Y: y, Item: item}
	}

	return ClusterPoints(points, pixelRadius), nil
}
