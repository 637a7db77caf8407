package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
	"github.com/lueurxax/signal-ingest/internal/core/textnorm"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
)

const (
	nominatimBaseURL        = "https://nominatim.openstreetmap.org/search"
	geocodeDefaultInterval  = 1100 * time.Millisecond
	geocodeDefaultTimeout   = 10 * time.Second
	geocodeDefaultMax       = 25
	geocodeDefaultUserAgent = "signal-ingest/1.0"
	geocodeMaxBody          = 1 << 20

	geocodeResultHit      = "hit"
	geocodeResultCached   = "cached"
	geocodeResultNotFound = "not_found"
	geocodeResultError    = "error"

	logKeyPlace = "place"
)

var errGeocodeUnexpectedStatus = errors.New("geocode unexpected status")

// Place is a geocoder match.
type Place struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"displayName"`
}

// GeocoderConfig configures the Nominatim client.
type GeocoderConfig struct {
	BaseURL       string
	Interval      time.Duration
	MaxPerRefresh int
	UserAgent     string
	Client        *http.Client
}

type geocodeEntry struct {
	place *Place
}

// Geocoder resolves place text through Nominatim. Calls are serialized and
// throttled to one per Interval; results, including misses, are cached for
// the life of the process by normalized query text.
type Geocoder struct {
	baseURL       string
	userAgent     string
	maxPerRefresh int
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *zerolog.Logger

	callMu sync.Mutex
	mu     sync.RWMutex
	cache  map[string]geocodeEntry
}

// NewGeocoder creates a Geocoder.
func NewGeocoder(cfg GeocoderConfig, logger *zerolog.Logger) *Geocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = nominatimBaseURL
	}

	if cfg.Interval <= 0 {
		cfg.Interval = geocodeDefaultInterval
	}

	if cfg.MaxPerRefresh <= 0 {
		cfg.MaxPerRefresh = geocodeDefaultMax
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = geocodeDefaultUserAgent
	}

	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: geocodeDefaultTimeout}
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Geocoder{
		baseURL:       cfg.BaseURL,
		userAgent:     cfg.UserAgent,
		maxPerRefresh: cfg.MaxPerRefresh,
		httpClient:    cfg.Client,
		limiter:       rate.NewLimiter(rate.Every(cfg.Interval), 1),
		logger:        logger,
		cache:         make(map[string]geocodeEntry),
	}
}

func cacheKey(place string) string {
	return strings.Join(strings.Fields(textnorm.Fold(place)), " ")
}

func (g *Geocoder) cached(key string) (geocodeEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.cache[key]

	return e, ok
}

func (g *Geocoder) store(key string, place *Place) {
	g.mu.Lock()
	g.cache[key] = geocodeEntry{place: place}
	g.mu.Unlock()
}

// Geocode returns the best match for placeText. ErrGeocodeNotFound is
// returned for a cached or fresh miss.
func (g *Geocoder) Geocode(ctx context.Context, placeText string) (*Place, error) {
	key := cacheKey(placeText)
	if key == "" {
		return nil, apperrors.ErrInvalidInput
	}

	if e, ok := g.cached(key); ok {
		observability.GeocodeLookups.WithLabelValues(geocodeResultCached).Inc()

		if e.place == nil {
			return nil, apperrors.ErrGeocodeNotFound
		}

		return e.place, nil
	}

	g.callMu.Lock()
	defer g.callMu.Unlock()

	// Another caller may have resolved it while we waited.
	if e, ok := g.cached(key); ok {
		if e.place == nil {
			return nil, apperrors.ErrGeocodeNotFound
		}

		return e.place, nil
	}

	place, err := g.lookup(ctx, key)
	if err != nil && !errors.Is(err, apperrors.ErrGeocodeNotFound) {
		observability.GeocodeLookups.WithLabelValues(geocodeResultError).Inc()
		return nil, err
	}

	g.store(key, place)

	if place == nil {
		observability.GeocodeLookups.WithLabelValues(geocodeResultNotFound).Inc()
		return nil, apperrors.ErrGeocodeNotFound
	}

	observability.GeocodeLookups.WithLabelValues(geocodeResultHit).Inc()

	return place, nil
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (g *Geocoder) lookup(ctx context.Context, query string) (*Place, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create geocode request: %w", err)
	}

	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errGeocodeUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, geocodeMaxBody))
	if err != nil {
		return nil, fmt.Errorf("read geocode response: %w", err)
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parse geocode json: %w", err)
	}

	if len(results) == 0 {
		return nil, apperrors.ErrGeocodeNotFound
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)

	if errLat != nil || errLon != nil || !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return nil, apperrors.ErrGeocodeNotFound
	}

	return &Place{Lat: lat, Lon: lon, DisplayName: results[0].DisplayName}, nil
}

// FillMissing geocodes items that have location text but no coordinates.
// Network lookups stop after MaxPerRefresh; cached answers are always used.
// It returns the number of items that gained coordinates.
func (g *Geocoder) FillMissing(ctx context.Context, items []domain.NormalizedItem) int {
	filled, lookups := 0, 0

	for i := range items {
		item := &items[i]
		if item.HasGeo() || strings.TrimSpace(item.Location) == "" {
			continue
		}

		key := cacheKey(item.Location)
		if _, ok := g.cached(key); !ok {
			if lookups >= g.maxPerRefresh {
				continue
			}

			lookups++
		}

		place, err := g.Geocode(ctx, item.Location)
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			if !errors.Is(err, apperrors.ErrGeocodeNotFound) {
				g.logger.Debug().Err(err).Str(logKeyPlace, item.Location).Msg("geocode failed")
			}

			continue
		}

		item.Geo = &domain.GeoPoint{Lat: place.Lat, Lon: place.Lon}
		filled++
	}

	return filled
}
