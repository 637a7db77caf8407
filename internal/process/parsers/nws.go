package parsers

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

var nwsSeverity = map[string]string{
	"extreme":  domain.SeverityCritical,
	"severe":   domain.SeverityHigh,
	"moderate": domain.SeverityModerate,
	"minor":    domain.SeverityLow,
}

// parseNWS maps api.weather.gov CAP alerts. Zone-based alerts often carry no
// geometry; the area description is kept as location for geocoding.
func parseNWS(_ domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	features, err := decodeFeatures(body)
	if err != nil {
		return nil, err
	}

	items := make([]domain.NormalizedItem, 0, len(features))

	for _, f := range features {
		props := gjson.ParseBytes(f.Properties)

		title := props.Get("headline").String()
		if title == "" {
			title = props.Get("event").String()
		}

		url := props.Get("@id").String()
		if url == "" {
			url = strings.Trim(string(f.ID), `"`)
		}

		published := dateFromJSON(props.Get("sent"))
		if published.IsZero() {
			published = dateFromJSON(props.Get("effective"))
		}

		item := domain.NormalizedItem{
			Title:       title,
			URL:         url,
			Summary:     plainSummary(props.Get("description").String()),
			PublishedAt: domain.EpochMillis(published),
			Location:    props.Get("areaDesc").String(),
			AlertType:   domain.AlertWeather,
			Severity:    nwsSeverity[strings.ToLower(props.Get("severity").String())],
		}

		if event := props.Get("event").String(); event != "" {
			item.Tags = []string{event}
		}

		if pt, err := centroid(f.Geometry); err == nil {
			item.Geo = pt
		}

		items = append(items, item)
	}

	return items, nil
}
