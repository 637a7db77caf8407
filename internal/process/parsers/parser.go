// Package parsers maps raw feed bodies to NormalizedItems. Dispatch goes by
// feed id first (exact, then prefix) and falls back to the feed's format.
package parsers

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
	"github.com/lueurxax/signal-ingest/internal/platform/htmlutils"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
)

const (
	logFieldFeed   = "feed"
	logFieldFormat = "format"
)

// Parser maps one feed body to items.
type Parser interface {
	Parse(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error)

// Parse calls fn.
func (fn ParserFunc) Parse(feed domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	return fn(feed, body)
}

type prefixOverride struct {
	prefix string
	parser Parser
}

// Registry resolves the parser for a feed. It is built once at startup and
// read-only afterwards.
type Registry struct {
	byFormat  map[domain.FeedFormat]Parser
	overrides map[string]Parser
	prefixes  []prefixOverride
	logger    *zerolog.Logger
}

// NewRegistry returns a registry with the generic format parsers and the
// built-in per-feed overrides.
func NewRegistry(logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	r := &Registry{
		byFormat: map[domain.FeedFormat]Parser{
			domain.FormatRSS:     ParserFunc(parseRSS),
			domain.FormatJSON:    ParserFunc(parseJSON),
			domain.FormatCSV:     ParserFunc(parseCSV),
			domain.FormatArcGIS:  ParserFunc(parseArcGIS),
			domain.FormatGeoJSON: ParserFunc(parseGeoJSON),
		},
		overrides: make(map[string]Parser),
		logger:    logger,
	}

	r.Register("usgs-earthquakes", ParserFunc(parseUSGS))
	r.Register("nws-alerts", ParserFunc(parseNWS))
	r.Register("nasa-eonet", ParserFunc(parseEONET))
	r.Register("swpc-alerts", ParserFunc(parseSWPC))
	r.Register("cisa-kev", ParserFunc(parseKEV))
	r.RegisterPrefix("eia-", ParserFunc(parseEIA))
	r.RegisterPrefix("gdelt-", ParserFunc(parseGDELT))
	r.RegisterPrefix("firms-", ParserFunc(parseFIRMS))

	return r
}

// Register sets the parser for one feed id.
func (r *Registry) Register(feedID string, p Parser) {
	r.overrides[feedID] = p
}

// RegisterPrefix sets the parser for every feed id starting with prefix.
func (r *Registry) RegisterPrefix(prefix string, p Parser) {
	r.prefixes = append(r.prefixes, prefixOverride{prefix: prefix, parser: p})
}

// Resolve returns the parser for feed.
func (r *Registry) Resolve(feed domain.FeedDescriptor) (Parser, bool) {
	if p, ok := r.overrides[feed.ID]; ok {
		return p, true
	}

	for _, po := range r.prefixes {
		if strings.HasPrefix(feed.ID, po.prefix) {
			return po.parser, true
		}
	}

	p, ok := r.byFormat[feed.Format]

	return p, ok
}

// Parse maps body to items. It never fails: errors and panics degrade to an
// empty list. FeedID, Category and Source defaults are filled in.
func (r *Registry) Parse(feed domain.FeedDescriptor, body []byte) (items []domain.NormalizedItem) {
	p, ok := r.Resolve(feed)
	if !ok || len(body) == 0 {
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			observability.ParseFailures.WithLabelValues(feed.ID).Inc()
			r.logger.Error().
				Str(logFieldFeed, feed.ID).
				Interface("panic", rec).
				Msg("parser panicked")

			items = nil
		}
	}()

	parsed, err := p.Parse(feed, body)
	if err != nil {
		observability.ParseFailures.WithLabelValues(feed.ID).Inc()
		r.logger.Debug().
			Err(err).
			Str(logFieldFeed, feed.ID).
			Str(logFieldFormat, string(feed.Format)).
			Msg("parse failed, feed yields no items")

		return nil
	}

	out := parsed[:0]

	for _, item := range parsed {
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			continue
		}

		out = append(out, fillDefaults(feed, item))
	}

	return out
}

func fillDefaults(feed domain.FeedDescriptor, item domain.NormalizedItem) domain.NormalizedItem {
	item.FeedID = feed.ID

	if item.Category == "" {
		item.Category = feed.Category
	}

	if item.Source == "" {
		item.Source = feed.Source
	}

	if item.Source == "" {
		item.Source = feed.DisplayName()
	}

	if len(feed.Tags) > 0 {
		item.Tags = mergeTags(feed.Tags, item.Tags)
	}

	return item
}

func mergeTags(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))

	for _, list := range [][]string{base, extra} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" || seen[strings.ToLower(t)] {
				continue
			}

			seen[strings.ToLower(t)] = true
			out = append(out, t)
		}
	}

	return out
}

// plainSummary flattens HTML or wrapped text into a bounded summary.
func plainSummary(s string) string {
	return htmlutils.Truncate(htmlutils.PlainText(s), maxSummary)
}

func unexpectedShape(what string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrUnexpectedShape, what)
}
