package parsers

import (
	"encoding/json"
	"fmt"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
)

// GeoJSON geometry types.
const (
	geomPoint           = "Point"
	geomMultiPoint      = "MultiPoint"
	geomLineString      = "LineString"
	geomMultiLineString = "MultiLineString"
	geomPolygon         = "Polygon"
	geomMultiPolygon    = "MultiPolygon"
)

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// position is [lon, lat, ...].
type position []float64

// centroid returns the representative point of a GeoJSON geometry:
// Point as is, MultiPoint mean, LineString middle vertex, MultiLineString
// middle vertex of the first line, Polygon mean of the outer ring,
// MultiPolygon mean of all outer rings.
func centroid(g *geometry) (*domain.GeoPoint, error) {
	if g == nil || len(g.Coordinates) == 0 || string(g.Coordinates) == "null" {
		return nil, apperrors.ErrNoGeometry
	}

	switch g.Type {
	case geomPoint:
		var p position
		if err := json.Unmarshal(g.Coordinates, &p); err != nil {
			return nil, fmt.Errorf("decode point: %w", err)
		}

		return toPoint(p)
	case geomMultiPoint:
		var ps []position
		if err := json.Unmarshal(g.Coordinates, &ps); err != nil {
			return nil, fmt.Errorf("decode multipoint: %w", err)
		}

		return meanOf(ps)
	case geomLineString:
		var ps []position
		if err := json.Unmarshal(g.Coordinates, &ps); err != nil {
			return nil, fmt.Errorf("decode linestring: %w", err)
		}

		return middleOf(ps)
	case geomMultiLineString:
		var lines [][]position
		if err := json.Unmarshal(g.Coordinates, &lines); err != nil || len(lines) == 0 {
			return nil, fmt.Errorf("decode multilinestring: %w", apperrors.ErrNoGeometry)
		}

		return middleOf(lines[0])
	case geomPolygon:
		var rings [][]position
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil || len(rings) == 0 {
			return nil, fmt.Errorf("decode polygon: %w", apperrors.ErrNoGeometry)
		}

		return meanOf(openRing(rings[0]))
	case geomMultiPolygon:
		var polys [][][]position
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}

		var all []position

		for _, rings := range polys {
			if len(rings) > 0 {
				all = append(all, openRing(rings[0])...)
			}
		}

		return meanOf(all)
	default:
		return nil, fmt.Errorf("%w: geometry type %q", apperrors.ErrNoGeometry, g.Type)
	}
}

func toPoint(p position) (*domain.GeoPoint, error) {
	if len(p) < 2 {
		return nil, apperrors.ErrNoGeometry
	}

	pt := &domain.GeoPoint{Lat: p[1], Lon: p[0]}
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: out of range", apperrors.ErrNoGeometry)
	}

	return pt, nil
}

// openRing drops the closing vertex that repeats the first one.
func openRing(ring []position) []position {
	if len(ring) > 1 && samePosition(ring[0], ring[len(ring)-1]) {
		return ring[:len(ring)-1]
	}

	return ring
}

// meanOf is the arithmetic mean of vertices.
func meanOf(ps []position) (*domain.GeoPoint, error) {
	var sumLat, sumLon float64

	n := 0

	for _, p := range ps {
		if len(p) < 2 {
			continue
		}

		sumLon += p[0]
		sumLat += p[1]
		n++
	}

	if n == 0 {
		return nil, apperrors.ErrNoGeometry
	}

	return toPoint(position{sumLon / float64(n), sumLat / float64(n)})
}

func middleOf(ps []position) (*domain.GeoPoint, error) {
	if len(ps) == 0 {
		return nil, apperrors.ErrNoGeometry
	}

	return toPoint(ps[len(ps)/2])
}

func samePosition(a, b position) bool {
	return len(a) >= 2 && len(b) >= 2 && a[0] == b[0] && a[1] == b[1]
}
