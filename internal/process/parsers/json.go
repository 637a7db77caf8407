package parsers

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/platform/htmlutils"
)

// Container paths probed when a feed sets no items path.
var itemContainers = []string{"items", "data", "results", "articles", "entries", "events", "alerts", "features"}

// Fallback field paths per item attribute, tried in order after the
// descriptor's own mapping.
var (
	titlePaths     = []string{"title", "headline", "name", "properties.title", "properties.name"}
	urlPaths       = []string{"url", "link", "href", "permalink", "properties.url"}
	summaryPaths   = []string{"summary", "description", "body", "content", "excerpt", "properties.description"}
	publishedPaths = []string{"published", "publishedAt", "pubDate", "date", "time", "updated", "created", "timestamp", "properties.time"}
	latPaths       = []string{"lat", "latitude", "geo.lat", "location.lat"}
	lonPaths       = []string{"lon", "lng", "long", "longitude", "geo.lon", "geo.lng", "location.lon", "location.lng"}
	locationPaths  = []string{"location", "place", "area", "region", "country", "areaDesc"}
	sourcePaths    = []string{"source", "source.name", "domain", "publisher"}
)

// parseJSON maps a generic JSON API payload using the descriptor's items
// path and field mapping, falling back to common field names.
func parseJSON(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	if !gjson.ValidBytes(body) {
		return nil, unexpectedShape("invalid json")
	}

	list, err := jsonItems(gjson.ParseBytes(body), feed.Items)
	if err != nil {
		return nil, err
	}

	items := make([]domain.NormalizedItem, 0, len(list))

	for _, raw := range list {
		if !raw.IsObject() {
			continue
		}

		items = append(items, mapJSONItem(raw, feed.Fields))
	}

	return items, nil
}

func jsonItems(root gjson.Result, path string) ([]gjson.Result, error) {
	if path != "" {
		v := root.Get(path)
		if !v.IsArray() {
			return nil, unexpectedShape("items path " + path + " is not an array")
		}

		return v.Array(), nil
	}

	if root.IsArray() {
		return root.Array(), nil
	}

	for _, c := range itemContainers {
		if v := root.Get(c); v.IsArray() {
			return v.Array(), nil
		}
	}

	return nil, unexpectedShape("no item array found")
}

func mapJSONItem(raw gjson.Result, fields domain.FieldMapping) domain.NormalizedItem {
	summary := firstString(raw, fields.Summary, summaryPaths)

	item := domain.NormalizedItem{
		Title:       htmlutils.PlainText(firstString(raw, fields.Title, titlePaths)),
		URL:         firstString(raw, fields.URL, urlPaths),
		Summary:     plainSummary(summary),
		PublishedAt: domain.EpochMillis(dateFromJSON(firstValue(raw, fields.Published, publishedPaths))),
		Location:    firstString(raw, fields.Location, locationPaths),
		Source:      firstString(raw, fields.Source, sourcePaths),
	}

	if strings.Contains(summary, "<") {
		item.SummaryHTML = summary
	}

	lat := firstValue(raw, fields.Lat, latPaths)
	lon := firstValue(raw, fields.Lon, lonPaths)

	if lat.Exists() && lon.Exists() {
		item.Geo = parseLatLon(lat.String(), lon.String())
	}

	return item
}

// firstValue returns the first existing value among the mapped path and the
// fallbacks.
func firstValue(raw gjson.Result, mapped string, fallbacks []string) gjson.Result {
	if mapped != "" {
		return raw.Get(mapped)
	}

	for _, p := range fallbacks {
		if v := raw.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}

	return gjson.Result{}
}

func firstString(raw gjson.Result, mapped string, fallbacks []string) string {
	paths := fallbacks
	if mapped != "" {
		paths = []string{mapped}
	}

	for _, p := range paths {
		v := raw.Get(p)
		if v.Type == gjson.String || v.Type == gjson.Number {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}

	return ""
}
