package domain

import "time"

// Alert types set by category inference.
const (
	AlertVulnerability = "Vulnerability"
	AlertNew           = "New"
	AlertUpdated       = "Updated"
	AlertAdvisory      = "Advisory"
	AlertEarthquake    = "Earthquake"
	AlertWildfire      = "Wildfire"
	AlertWeather       = "Weather"
	AlertSpaceWeather  = "SpaceWeather"
)

// Severity levels.
const (
	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Trend labels for news items.
const (
	TrendSpiking = "Spiking"
	TrendBroad   = "Broad"
	TrendFresh   = "Fresh"
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether p lies inside WGS84 bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// NormalizedItem is the canonical signal unit. The URL is canonicalized
// before any dedup or cluster step runs.
type NormalizedItem struct {
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	Summary         string    `json:"summary,omitempty"`
	SummaryHTML     string    `json:"summaryHtml,omitempty"`
	PublishedAt     int64     `json:"publishedAt"`
	Source          string    `json:"source"`
	Category        string    `json:"category"`
	FeedID          string    `json:"feedId"`
	Geo             *GeoPoint `json:"geo,omitempty"`
	Location        string    `json:"location,omitempty"`
	AlertType       string    `json:"alertType,omitempty"`
	Severity        string    `json:"severity,omitempty"`
	RegionTag       string    `json:"regionTag,omitempty"`
	TopicTag        string    `json:"topicTag,omitempty"`
	CredibilityTier int       `json:"credibilityTier,omitempty"`
	Trend           string    `json:"trend,omitempty"`
	IsNonEnglish    bool      `json:"isNonEnglish"`
	Tags            []string  `json:"tags,omitempty"`
	ImageURL        string    `json:"imageUrl,omitempty"`

	// DedupeKey overrides the URL/title key for cross-category merges.
	DedupeKey string `json:"dedupeKey,omitempty"`
}

// Published returns PublishedAt as a time.
func (i NormalizedItem) Published() time.Time {
	return time.UnixMilli(i.PublishedAt)
}

// HasGeo reports whether the item carries a usable coordinate.
func (i NormalizedItem) HasGeo() bool {
	return i.Geo != nil && i.Geo.Valid()
}

// EpochMillis converts t to epoch milliseconds, zero for the zero time.
func EpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}
