package parsers

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

const (
	quakeCriticalMag = 7.0
	quakeHighMag     = 6.0
	quakeModerateMag = 4.5
)

// pagerSeverity maps the USGS PAGER alert color.
var pagerSeverity = map[string]string{
	"red":    domain.SeverityCritical,
	"orange": domain.SeverityHigh,
	"yellow": domain.SeverityModerate,
}

// parseUSGS maps the USGS earthquake summary GeoJSON. Magnitude drives
// severity unless the PAGER alert is higher.
func parseUSGS(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	features, err := decodeFeatures(body)
	if err != nil {
		return nil, err
	}

	items := make([]domain.NormalizedItem, 0, len(features))

	for _, f := range features {
		props := gjson.ParseBytes(f.Properties)
		mag := props.Get("mag").Float()
		place := props.Get("place").String()

		title := props.Get("title").String()
		if title == "" {
			title = fmt.Sprintf("M %.1f - %s", mag, place)
		}

		severity := magnitudeSeverity(mag)
		if pager, ok := pagerSeverity[props.Get("alert").String()]; ok && severityRank(pager) > severityRank(severity) {
			severity = pager
		}

		item := domain.NormalizedItem{
			Title:       title,
			URL:         props.Get("url").String(),
			Summary:     quakeSummary(props),
			PublishedAt: props.Get("time").Int(),
			Location:    place,
			AlertType:   domain.AlertEarthquake,
			Severity:    severity,
		}

		if props.Get("tsunami").Int() == 1 {
			item.Tags = append(item.Tags, "tsunami")
		}

		if pt, err := centroid(f.Geometry); err == nil {
			item.Geo = pt
		}

		items = append(items, item)
	}

	return items, nil
}

func quakeSummary(props gjson.Result) string {
	summary := fmt.Sprintf("Magnitude %.1f %s", props.Get("mag").Float(), props.Get("magType").String())

	if felt := props.Get("felt").Int(); felt > 0 {
		summary += fmt.Sprintf(", felt by %d people", felt)
	}

	return summary
}

func magnitudeSeverity(mag float64) string {
	switch {
	case mag >= quakeCriticalMag:
		return domain.SeverityCritical
	case mag >= quakeHighMag:
		return domain.SeverityHigh
	case mag >= quakeModerateMag:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}

func severityRank(s string) int {
	switch s {
	case domain.SeverityCritical:
		return 4
	case domain.SeverityHigh:
		return 3
	case domain.SeverityModerate:
		return 2
	case domain.SeverityLow:
		return 1
	default:
		return 0
	}
}
