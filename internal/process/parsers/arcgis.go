package parsers

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

type esriFeatureSet struct {
	Features []esriFeature `json:"features"`
}

type esriFeature struct {
	Attributes json.RawMessage `json:"attributes"`
	Geometry   *esriGeometry   `json:"geometry"`
}

type esriGeometry struct {
	X      *float64      `json:"x"`
	Y      *float64      `json:"y"`
	Points [][]float64   `json:"points"`
	Paths  [][][]float64 `json:"paths"`
	Rings  [][][]float64 `json:"rings"`
}

// parseArcGIS maps an ArcGIS FeatureServer query response. Both Esri JSON
// (f=json) and GeoJSON (f=geojson) responses are accepted. Geometry must be
// in WGS84 (outSR=4326).
func parseArcGIS(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	if gjson.GetBytes(body, "type").String() == "FeatureCollection" {
		return parseGeoJSON(feed, body)
	}

	if errMsg := gjson.GetBytes(body, "error.message"); errMsg.Exists() {
		return nil, unexpectedShape("arcgis error: " + errMsg.String())
	}

	var fs esriFeatureSet
	if err := json.Unmarshal(body, &fs); err != nil {
		return nil, unexpectedShape("arcgis: " + err.Error())
	}

	items := make([]domain.NormalizedItem, 0, len(fs.Features))

	for _, f := range fs.Features {
		attrs := gjson.ParseBytes(f.Attributes)

		item := domain.NormalizedItem{
			Title:       firstString(attrs, feed.Fields.Title, titlePaths),
			URL:         firstString(attrs, feed.Fields.URL, urlPaths),
			Summary:     firstString(attrs, feed.Fields.Summary, summaryPaths),
			PublishedAt: domain.EpochMillis(dateFromJSON(firstValue(attrs, feed.Fields.Published, publishedPaths))),
			Location:    firstString(attrs, feed.Fields.Location, locationPaths),
			Geo:         esriPoint(f.Geometry),
		}

		items = append(items, item)
	}

	return items, nil
}

// esriPoint applies the same representative-point rules as GeoJSON: point as
// is, multipoint mean, polyline middle vertex, polygon outer ring mean.
func esriPoint(g *esriGeometry) *domain.GeoPoint {
	if g == nil {
		return nil
	}

	var (
		pt  *domain.GeoPoint
		err error
	)

	switch {
	case g.X != nil && g.Y != nil:
		pt, err = toPoint(position{*g.X, *g.Y})
	case len(g.Points) > 0:
		pt, err = meanOf(toPositions(g.Points))
	case len(g.Paths) > 0:
		pt, err = middleOf(toPositions(g.Paths[0]))
	case len(g.Rings) > 0:
		pt, err = meanOf(openRing(toPositions(g.Rings[0])))
	default:
		return nil
	}

	if err != nil {
		return nil
	}

	return pt
}

func toPositions(raw [][]float64) []position {
	out := make([]position, len(raw))
	for i, p := range raw {
		out[i] = p
	}

	return out
}
