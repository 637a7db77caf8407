package parsers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

const (
	maxFIRMSItems      = 500
	firmsMapURL        = "https://firms.modaps.eosdis.nasa.gov/map/"
	firmsCriticalFRP   = 500.0
	firmsHighFRP       = 100.0
	firmsModerateFRP   = 20.0
	firmsLowConfidence = "l"
)

type firmsHotspot struct {
	item domain.NormalizedItem
	frp  float64
}

// parseFIRMS maps NASA FIRMS active fire CSV rows, strongest radiative power
// first. Low-confidence detections are dropped.
func parseFIRMS(_ domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	t, err := readCSV(body)
	if err != nil {
		return nil, err
	}

	hotspots := make([]firmsHotspot, 0, len(t.rows))

	for _, row := range t.rows {
		if strings.EqualFold(t.cell(row, "confidence", nil), firmsLowConfidence) {
			continue
		}

		lat := t.cell(row, "latitude", nil)
		lon := t.cell(row, "longitude", nil)

		pt := parseLatLon(lat, lon)
		if pt == nil {
			continue
		}

		frp, _ := strconv.ParseFloat(t.cell(row, "frp", nil), 64)
		date := t.cell(row, "acq_date", nil)
		clock := t.cell(row, "acq_time", nil)

		hotspots = append(hotspots, firmsHotspot{
			frp: frp,
			item: domain.NormalizedItem{
				Title:       fmt.Sprintf("Thermal hotspot %.1f MW at %s, %s", frp, lat, lon),
				URL:         firmsMapURL,
				Summary:     fmt.Sprintf("%s %s detection", t.cell(row, "satellite", nil), t.cell(row, "instrument", nil)),
				PublishedAt: domain.EpochMillis(firmsTime(date, clock)),
				Geo:         pt,
				AlertType:   domain.AlertWildfire,
				Severity:    frpSeverity(frp),
				DedupeKey:   strings.Join([]string{"firms", lat, lon, date, clock}, "|"),
			},
		})
	}

	sort.SliceStable(hotspots, func(i, j int) bool { return hotspots[i].frp > hotspots[j].frp })

	if len(hotspots) > maxFIRMSItems {
		hotspots = hotspots[:maxFIRMSItems]
	}

	items := make([]domain.NormalizedItem, len(hotspots))
	for i, h := range hotspots {
		items[i] = h.item
	}

	return items, nil
}

// firmsTime joins acq_date (2006-01-02) and acq_time (HHMM, UTC).
func firmsTime(date, clock string) time.Time {
	if len(clock) < 4 {
		clock = strings.Repeat("0", 4-len(clock)) + clock
	}

	return parseDate(fmt.Sprintf("%sT%s:%s:00Z", date, clock[:2], clock[2:4]))
}

func frpSeverity(frp float64) string {
	switch {
	case frp >= firmsCriticalFRP:
		return domain.SeverityCritical
	case frp >= firmsHighFRP:
		return domain.SeverityHigh
	case frp >= firmsModerateFRP:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}
