// Package domain holds the data model shared by the ingestion pipeline:
// feed descriptors, fetch results, normalized items, clusters and feed status.
package domain

import (
	"net/url"
	"strings"
	"time"
)

// FeedFormat selects the generic parser for a feed body.
type FeedFormat string

// Feed formats.
const (
	FormatRSS     FeedFormat = "rss"
	FormatJSON    FeedFormat = "json"
	FormatCSV     FeedFormat = "csv"
	FormatArcGIS  FeedFormat = "arcgis"
	FormatGeoJSON FeedFormat = "geojson"
)

// Valid reports whether f is a known format.
func (f FeedFormat) Valid() bool {
	switch f {
	case FormatRSS, FormatJSON, FormatCSV, FormatArcGIS, FormatGeoJSON:
		return true
	default:
		return false
	}
}

// KeySource tells where the credential for a feed is managed.
type KeySource string

// Key sources.
const (
	KeySourceClient KeySource = "client"
	KeySourceServer KeySource = "server"
)

// Feed categories with category-specific enrichment.
const (
	CategoryNews     = "news"
	CategoryTravel   = "travel"
	CategoryCyber    = "cyber"
	CategoryResearch = "research"
	CategoryDisaster = "disaster"
	CategoryWeather  = "weather"
	CategorySpace    = "space"
	CategoryEnergy   = "energy"
)

const defaultTTLMinutes = 30

// FieldMapping maps payload fields onto item fields for the generic JSON and
// CSV parsers. JSON values are gjson paths relative to one item, CSV values
// are header names.
type FieldMapping struct {
	Title     string `yaml:"title"`
	URL       string `yaml:"url"`
	Summary   string `yaml:"summary"`
	Published string `yaml:"published"`
	Lat       string `yaml:"lat"`
	Lon       string `yaml:"lon"`
	Location  string `yaml:"location"`
	Source    string `yaml:"source"`
}

// FeedDescriptor describes one external feed. Descriptors are loaded once at
// startup and never mutated.
type FeedDescriptor struct {
	ID             string       `yaml:"id"`
	Name           string       `yaml:"name"`
	Source         string       `yaml:"source"`
	URLTemplate    string       `yaml:"url"`
	Format         FeedFormat   `yaml:"format"`
	Category       string       `yaml:"category"`
	TTLMinutes     int          `yaml:"ttlMinutes"`
	RequiresKey    bool         `yaml:"requiresKey"`
	KeySource      KeySource    `yaml:"keySource"`
	KeyGroup       string       `yaml:"keyGroup"`
	KeyParam       string       `yaml:"keyParam"`
	KeyHeader      string       `yaml:"keyHeader"`
	RequiresConfig bool         `yaml:"requiresConfig"`
	ProxyChain     []string     `yaml:"proxyChain"`
	SupportsQuery  bool         `yaml:"supportsQuery"`
	DefaultQuery   string       `yaml:"defaultQuery"`
	Tags           []string     `yaml:"tags"`
	TimeoutMs      int          `yaml:"timeoutMs"`
	Critical       bool         `yaml:"critical"`
	Items          string       `yaml:"items"`
	Fields         FieldMapping `yaml:"fields"`

	// MissingConfig lists ${VAR} placeholders that had no value at load time.
	MissingConfig []string `yaml:"-"`
}

// TTL returns the cache lifetime of the feed.
func (f FeedDescriptor) TTL() time.Duration {
	minutes := f.TTLMinutes
	if minutes <= 0 {
		minutes = defaultTTLMinutes
	}

	return time.Duration(minutes) * time.Minute
}

// Timeout returns the per-fetch budget, falling back to def.
func (f FeedDescriptor) Timeout(def time.Duration) time.Duration {
	if f.TimeoutMs > 0 {
		return time.Duration(f.TimeoutMs) * time.Millisecond
	}

	return def
}

// Unresolved reports whether config placeholders in the URL template are missing.
func (f FeedDescriptor) Unresolved() bool {
	return len(f.MissingConfig) > 0
}

// EffectiveQuery returns the query to substitute into the template.
func (f FeedDescriptor) EffectiveQuery(query string) string {
	if !f.SupportsQuery {
		return ""
	}

	if strings.TrimSpace(query) == "" {
		return f.DefaultQuery
	}

	return query
}

// DisplayName returns Name, falling back to Source and then ID.
func (f FeedDescriptor) DisplayName() string {
	switch {
	case f.Name != "":
		return f.Name
	case f.Source != "":
		return f.Source
	default:
		return f.ID
	}
}

// ProxyStrategy rewrites a target URL through a public relay.
// Template placeholders: {url} (query-escaped target) and {rawurl}.
type ProxyStrategy struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// Rewrite returns the relay URL for target.
func (p ProxyStrategy) Rewrite(target string) string {
	out := strings.ReplaceAll(p.Template, "{url}", url.QueryEscape(target))

	return strings.ReplaceAll(out, "{rawurl}", target)
}
