package parsers

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

const eiaBrowserURL = "https://www.eia.gov/opendata/browser"

type eiaPoint struct {
	period      string
	series      string
	description string
	units       string
	value       float64
}

// parseEIA maps EIA v2 series data to one item per series: the latest
// period with its change from the previous one.
func parseEIA(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	root := gjson.ParseBytes(body)

	if msg := root.Get("error"); msg.Exists() {
		return nil, unexpectedShape("eia error: " + msg.String())
	}

	data := root.Get("response.data")
	if !data.IsArray() {
		return nil, unexpectedShape("eia response.data missing")
	}

	bySeries := make(map[string][]eiaPoint)
	var order []string

	for _, row := range data.Array() {
		value, err := strconv.ParseFloat(row.Get("value").String(), 64)
		if err != nil {
			continue
		}

		p := eiaPoint{
			period:      row.Get("period").String(),
			series:      row.Get("series").String(),
			description: row.Get("series-description").String(),
			units:       row.Get("units").String(),
			value:       value,
		}

		if p.series == "" {
			p.series = feed.ID
		}

		if _, seen := bySeries[p.series]; !seen {
			order = append(order, p.series)
		}

		bySeries[p.series] = append(bySeries[p.series], p)
	}

	items := make([]domain.NormalizedItem, 0, len(order))

	for _, series := range order {
		points := bySeries[series]
		sort.SliceStable(points, func(i, j int) bool { return points[i].period > points[j].period })

		items = append(items, eiaItem(feed, points))
	}

	return items, nil
}

func eiaItem(feed domain.FeedDescriptor, points []eiaPoint) domain.NormalizedItem {
	latest := points[0]

	name := latest.description
	if name == "" {
		name = feed.DisplayName()
	}

	title := fmt.Sprintf("%s: %s %s (%s)", name, strconv.FormatFloat(latest.value, 'f', -1, 64), latest.units, latest.period)
	summary := ""

	if len(points) > 1 && points[1].value != 0 {
		change := (latest.value - points[1].value) / points[1].value * 100
		summary = fmt.Sprintf("%+.2f%% vs %s", change, points[1].period)
	}

	return domain.NormalizedItem{
		Title:       title,
		URL:         eiaBrowserURL,
		Summary:     summary,
		PublishedAt: domain.EpochMillis(parseDate(latest.period)),
		Tags:        []string{latest.series},
		DedupeKey:   "eia|" + latest.series + "|" + latest.period,
	}
}
