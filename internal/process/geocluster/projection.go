package geocluster

import (
	"fmt"
	"math"

	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
)

// Web-Mercator latitude limit.
const maxMercatorLat = 85.05112878

// Viewport is the visible map area and its pixel size. West may exceed East
// when the view crosses the antimeridian.
type Viewport struct {
	West   float64 `json:"west"`
	South  float64 `json:"south"`
	East   float64 `json:"east"`
	North  float64 `json:"north"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Validate checks that the viewport has area.
func (v Viewport) Validate() error {
	switch {
	case v.Width <= 0 || v.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", apperrors.ErrInvalidViewport, v.Width, v.Height)
	case v.South >= v.North:
		return fmt.Errorf("%w: south %.4f not below north %.4f", apperrors.ErrInvalidViewport, v.South, v.North)
	case v.South < -90 || v.North > 90 || v.West < -180 || v.West > 180 || v.East < -180 || v.East > 180:
		return fmt.Errorf("%w: bounds out of range", apperrors.ErrInvalidViewport)
	case v.West == v.East:
		return fmt.Errorf("%w: zero width", apperrors.ErrInvalidViewport)
	default:
		return nil
	}
}

// CrossesAntimeridian reports whether the view wraps past 180°.
func (v Viewport) CrossesAntimeridian() bool {
	return v.West > v.East
}

func (v Viewport) lonSpan() float64 {
	if v.CrossesAntimeridian() {
		return v.East + 360 - v.West
	}

	return v.East - v.West
}

// Project maps a coordinate to pixels, origin at the top-left corner.
func (v Viewport) Project(lat, lon float64) (x, y float64) {
	dLon := lon - v.West
	if v.CrossesAntimeridian() && dLon < 0 {
		dLon += 360
	}

	x = dLon / v.lonSpan() * float64(v.Width)

	top, bottom := mercatorY(v.North), mercatorY(v.South)
	y = (top - mercatorY(lat)) / (top - bottom) * float64(v.Height)

	return x, y
}

func mercatorY(lat float64) float64 {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	rad := lat * math.Pi / 180

	return math.Log(math.Tan(math.Pi/4 + rad/2))
}
