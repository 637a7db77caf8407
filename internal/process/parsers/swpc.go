package parsers

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

const swpcAlertsURL = "https://www.swpc.noaa.gov/products/alerts-watches-and-warnings"

type swpcAlert struct {
	ProductID     string `json:"product_id"`
	IssueDatetime string `json:"issue_datetime"`
	Message       string `json:"message"`
}

var (
	swpcHeadlineRe = regexp.MustCompile(`(?m)^(ALERT|WARNING|WATCH|SUMMARY|EXTENDED WARNING|CANCEL [A-Z]+):\s*(.+)$`)
	noaaScaleRe    = regexp.MustCompile(`\b[GSR]([1-5])\b`)
)

// parseSWPC maps NOAA SWPC alert products. Severity follows the highest
// NOAA scale level (G/S/R 1-5) mentioned in the message.
func parseSWPC(_ domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	var alerts []swpcAlert
	if err := json.Unmarshal(body, &alerts); err != nil {
		return nil, unexpectedShape("swpc json: " + err.Error())
	}

	items := make([]domain.NormalizedItem, 0, len(alerts))

	for _, a := range alerts {
		msg := strings.ReplaceAll(a.Message, "\r\n", "\n")

		title := a.ProductID
		if m := swpcHeadlineRe.FindStringSubmatch(msg); m != nil {
			title = strings.TrimSpace(m[1] + ": " + m[2])
		}

		items = append(items, domain.NormalizedItem{
			Title:       title,
			URL:         swpcAlertsURL,
			Summary:     plainSummary(msg),
			PublishedAt: domain.EpochMillis(parseDate(a.IssueDatetime)),
			AlertType:   domain.AlertSpaceWeather,
			Severity:    noaaScaleSeverity(msg),
			Tags:        []string{a.ProductID},
			DedupeKey:   "swpc|" + a.ProductID + "|" + a.IssueDatetime,
		})
	}

	return items, nil
}

func noaaScaleSeverity(msg string) string {
	level := 0

	for _, m := range noaaScaleRe.FindAllStringSubmatch(msg, -1) {
		if l := int(m[1][0] - '0'); l > level {
			level = l
		}
	}

	switch {
	case level >= 4:
		return domain.SeverityCritical
	case level == 3:
		return domain.SeverityHigh
	case level == 2:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}
