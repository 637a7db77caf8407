package parsers

import (
	"encoding/json"
	"strings"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

type eonetResponse struct {
	Events []eonetEvent `json:"events"`
}

type eonetEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Categories  []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"categories"`
	Sources []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"sources"`
	Geometry []struct {
		Date        string          `json:"date"`
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

var eonetAlertTypes = map[string]string{
	"wildfires":    domain.AlertWildfire,
	"severeStorms": domain.AlertWeather,
	"snow":         domain.AlertWeather,
	"tempExtremes": domain.AlertWeather,
	"earthquakes":  domain.AlertEarthquake,
	"volcanoes":    "Volcano",
	"floods":       "Flood",
	"landslides":   "Landslide",
	"drought":      "Drought",
	"dustHaze":     "DustHaze",
	"seaLakeIce":   "Ice",
}

// parseEONET maps NASA EONET v3 events. The latest geometry entry gives the
// position and timestamp.
func parseEONET(_ domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	var resp eonetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, unexpectedShape("eonet json: " + err.Error())
	}

	items := make([]domain.NormalizedItem, 0, len(resp.Events))

	for _, ev := range resp.Events {
		item := domain.NormalizedItem{
			Title:   ev.Title,
			URL:     ev.Link,
			Summary: plainSummary(ev.Description),
		}

		if len(ev.Sources) > 0 && ev.Sources[0].URL != "" {
			item.URL = ev.Sources[0].URL
		}

		for _, c := range ev.Categories {
			if item.AlertType == "" {
				item.AlertType = eonetAlertTypes[c.ID]
			}

			item.Tags = append(item.Tags, c.Title)
		}

		if n := len(ev.Geometry); n > 0 {
			last := ev.Geometry[n-1]
			item.PublishedAt = domain.EpochMillis(parseDate(last.Date))

			if pt, err := centroid(&geometry{Type: last.Type, Coordinates: last.Coordinates}); err == nil {
				item.Geo = pt
			}
		}

		if item.URL == "" && ev.ID != "" {
			item.URL = "https://eonet.gsfc.nasa.gov/api/v3/events/" + strings.TrimSpace(ev.ID)
		}

		items = append(items, item)
	}

	return items, nil
}
