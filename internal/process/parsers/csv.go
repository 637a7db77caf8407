package parsers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

var (
	csvTitleCols     = []string{"title", "name", "headline"}
	csvURLCols       = []string{"url", "link"}
	csvSummaryCols   = []string{"summary", "description"}
	csvPublishedCols = []string{"published", "date", "time", "timestamp", "updated"}
	csvLatCols       = []string{"lat", "latitude"}
	csvLonCols       = []string{"lon", "lng", "long", "longitude"}
	csvLocationCols  = []string{"location", "place", "region", "country"}
)

// csvTable is a decoded CSV body with a case-insensitive header index.
type csvTable struct {
	index map[string]int
	rows  [][]string
}

func readCSV(body []byte) (*csvTable, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte{0xEF, 0xBB, 0xBF})))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, unexpectedShape("csv header: " + err.Error())
	}

	t := &csvTable{index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, unexpectedShape("csv row: " + err.Error())
		}

		t.rows = append(t.rows, row)
	}

	return t, nil
}

// cell returns the first non-empty value among the mapped column and fallbacks.
func (t *csvTable) cell(row []string, mapped string, fallbacks []string) string {
	cols := fallbacks
	if mapped != "" {
		cols = []string{mapped}
	}

	for _, c := range cols {
		idx, ok := t.index[strings.ToLower(c)]
		if !ok || idx >= len(row) {
			continue
		}

		if v := strings.TrimSpace(row[idx]); v != "" {
			return v
		}
	}

	return ""
}

// parseCSV maps a headed CSV body using the descriptor's field mapping.
func parseCSV(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	t, err := readCSV(body)
	if err != nil {
		return nil, err
	}

	f := feed.Fields
	items := make([]domain.NormalizedItem, 0, len(t.rows))

	for _, row := range t.rows {
		item := domain.NormalizedItem{
			Title:       t.cell(row, f.Title, csvTitleCols),
			URL:         t.cell(row, f.URL, csvURLCols),
			Summary:     t.cell(row, f.Summary, csvSummaryCols),
			PublishedAt: domain.EpochMillis(parseDate(t.cell(row, f.Published, csvPublishedCols))),
			Location:    t.cell(row, f.Location, csvLocationCols),
			Geo:         parseLatLon(t.cell(row, f.Lat, csvLatCols), t.cell(row, f.Lon, csvLonCols)),
		}

		items = append(items, item)
	}

	return items, nil
}
