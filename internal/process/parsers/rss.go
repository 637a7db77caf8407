package parsers

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/platform/htmlutils"
)

const (
	extGeoRSS   = "georss"
	extW3CGeo   = "geo"
	maxSummary  = 600
	imagePrefix = "image/"
)

// parseRSS maps RSS, Atom and RDF items. GeoRSS and W3C geo points are
// picked up when present.
func parseRSS(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, unexpectedShape("feed document: " + err.Error())
	}

	items := make([]domain.NormalizedItem, 0, len(parsed.Items))

	for _, it := range parsed.Items {
		if it == nil {
			continue
		}

		summaryHTML := it.Description
		if summaryHTML == "" {
			summaryHTML = it.Content
		}

		item := domain.NormalizedItem{
			Title:       htmlutils.PlainText(it.Title),
			URL:         strings.TrimSpace(it.Link),
			SummaryHTML: summaryHTML,
			Summary:     plainSummary(summaryHTML),
			PublishedAt: domain.EpochMillis(itemTime(it)),
			Geo:         itemGeo(it.Extensions),
			ImageURL:    itemImage(it, summaryHTML),
			Tags:        it.Categories,
		}

		if item.URL == "" && len(it.Links) > 0 {
			item.URL = strings.TrimSpace(it.Links[0])
		}

		if item.URL == "" && strings.HasPrefix(it.GUID, "http") {
			item.URL = it.GUID
		}

		items = append(items, item)
	}

	return items, nil
}

func itemTime(it *gofeed.Item) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return *it.PublishedParsed
	case it.UpdatedParsed != nil:
		return *it.UpdatedParsed
	case it.Published != "":
		return parseDate(it.Published)
	default:
		return parseDate(it.Updated)
	}
}

func itemImage(it *gofeed.Item, summaryHTML string) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}

	for _, enclosure := range it.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, imagePrefix) {
			return enclosure.URL
		}
	}

	return htmlutils.FirstImage(summaryHTML)
}

// itemGeo reads <georss:point>lat lon</georss:point> or <geo:lat>/<geo:long>.
func itemGeo(exts ext.Extensions) *domain.GeoPoint {
	if exts == nil {
		return nil
	}

	if point := firstExtValue(exts, extGeoRSS, "point"); point != "" {
		fields := strings.Fields(point)
		if len(fields) == 2 {
			if pt := parseLatLon(fields[0], fields[1]); pt != nil {
				return pt
			}
		}
	}

	lat := firstExtValue(exts, extW3CGeo, "lat")
	lon := firstExtValue(exts, extW3CGeo, "long")

	return parseLatLon(lat, lon)
}

func firstExtValue(exts ext.Extensions, prefix, name string) string {
	values := exts[prefix][name]
	if len(values) == 0 {
		return ""
	}

	return strings.TrimSpace(values[0].Value)
}

func parseLatLon(latText, lonText string) *domain.GeoPoint {
	if latText == "" || lonText == "" {
		return nil
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return nil
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return nil
	}

	pt := &domain.GeoPoint{Lat: lat, Lon: lon}
	if !pt.Valid() || (lat == 0 && lon == 0) {
		return nil
	}

	return pt
}
