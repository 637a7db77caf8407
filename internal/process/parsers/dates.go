package parsers

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"
)

const (
	// Epoch values above this are milliseconds.
	epochMillisThreshold = 1e11
	// Bare numbers below this are years or compact dates, not epochs.
	epochMinSeconds      = 1e8
	gdeltSeenDateLayout  = "20060102T150405Z"
)

// parseDate parses loose timestamp text, returning the zero time on failure.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil && n >= epochMinSeconds && !strings.ContainsAny(s, "-/:") {
		return fromEpoch(n)
	}

	if t, err := time.Parse(gdeltSeenDateLayout, s); err == nil {
		return t
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}

	return t
}

// dateFromJSON reads a gjson value that may be an epoch number or a string.
func dateFromJSON(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		return fromEpoch(v.Float())
	case gjson.String:
		return parseDate(v.String())
	default:
		return time.Time{}
	}
}

func fromEpoch(n float64) time.Time {
	if n <= 0 {
		return time.Time{}
	}

	if n > epochMillisThreshold {
		return time.UnixMilli(int64(n)).UTC()
	}

	return time.Unix(int64(n), 0).UTC()
}
