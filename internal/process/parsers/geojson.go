package parsers

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/platform/htmlutils"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	ID         json.RawMessage `json:"id"`
	Geometry   *geometry       `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

func decodeFeatures(body []byte) ([]feature, error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, unexpectedShape("geojson: " + err.Error())
	}

	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, unexpectedShape("geojson type " + fc.Type)
	}

	return fc.Features, nil
}

// parseGeoJSON maps a FeatureCollection. Feature properties are read with the
// descriptor's field mapping relative to the properties object.
func parseGeoJSON(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	features, err := decodeFeatures(body)
	if err != nil {
		return nil, err
	}

	items := make([]domain.NormalizedItem, 0, len(features))

	for _, f := range features {
		props := gjson.ParseBytes(f.Properties)
		summary := firstString(props, feed.Fields.Summary, summaryPaths)

		item := domain.NormalizedItem{
			Title:       htmlutils.PlainText(firstString(props, feed.Fields.Title, titlePaths)),
			URL:         firstString(props, feed.Fields.URL, urlPaths),
			Summary:     plainSummary(summary),
			PublishedAt: domain.EpochMillis(dateFromJSON(firstValue(props, feed.Fields.Published, publishedPaths))),
			Location:    firstString(props, feed.Fields.Location, locationPaths),
		}

		if strings.Contains(summary, "<") {
			item.SummaryHTML = summary
		}

		if pt, err := centroid(f.Geometry); err == nil {
			item.Geo = pt
		}

		items = append(items, item)
	}

	return items, nil
}
