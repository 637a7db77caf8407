// Package api serves the read API consumed by the rendering layer: feed
// status, items, news clusters, map clusters and manual refresh.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
	"github.com/lueurxax/signal-ingest/internal/ingest/engine"
	"github.com/lueurxax/signal-ingest/internal/process/geocluster"
)

// Rate limiting constants for manual refresh.
const (
	refreshLimitRequests = 6
	refreshLimitBurst    = 2
	refreshLimitWindow   = time.Minute
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json; charset=utf-8"

	logFieldRoute = "route"

	paramCategory = "category"
	paramForce    = "force"
	paramID       = "id"
	paramQuery    = "q"
	paramRadius   = "radius"
)

// Reader is the read side of the ingestion engine.
type Reader interface {
	Snapshot() *engine.Snapshot
	Statuses() []domain.FeedStatus
	DrawMap(v geocluster.Viewport, pixelRadius float64) ([]domain.MapCluster, error)
	FetchOne(ctx context.Context, feedID, query string, force bool) engine.FeedOutcome
}

// Refresher triggers a full refresh.
type Refresher interface {
	Refresh(ctx context.Context, trigger string, force bool) (*engine.Snapshot, error)
}

// Handler routes /api/ requests.
type Handler struct {
	reader    Reader
	refresher Refresher
	trigger   string
	mux       *http.ServeMux
	logger    *zerolog.Logger

	// IP-based rate limiting of manual refresh
	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
}

// NewHandler creates the API handler. trigger labels manual refreshes.
func NewHandler(reader Reader, refresher Refresher, trigger string, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	h := &Handler{
		reader:    reader,
		refresher: refresher,
		trigger:   trigger,
		mux:       http.NewServeMux(),
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}

	h.mux.HandleFunc("GET /api/feeds", h.handleFeeds)
	h.mux.HandleFunc("GET /api/feed", h.handleFeed)
	h.mux.HandleFunc("GET /api/items", h.handleItems)
	h.mux.HandleFunc("GET /api/clusters", h.handleClusters)
	h.mux.HandleFunc("GET /api/map", h.handleMap)
	h.mux.HandleFunc("POST /api/refresh", h.handleRefresh)

	return h
}

// ServeHTTP dispatches to the API routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	h.mux.ServeHTTP(w, r)
}

type feedsResponse struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Health      domain.HealthReport `json:"health"`
	Feeds       []domain.FeedStatus `json:"feeds"`
}

func (h *Handler) handleFeeds(w http.ResponseWriter, _ *http.Request) {
	snap := h.reader.Snapshot()
	statuses := h.reader.Statuses()

	h.writeJSON(w, RouteFeeds, http.StatusOK, feedsResponse{
		GeneratedAt: snap.GeneratedAt,
		Health:      domain.BuildHealth(statuses),
		Feeds:       statuses,
	})
}

type feedResponse struct {
	Result domain.FetchResult      `json:"result"`
	Status domain.FeedStatus       `json:"status"`
	Items  []domain.NormalizedItem `json:"items"`
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	id := strings.TrimSpace(q.Get(paramID))
	if id == "" {
		h.writeError(w, RouteFeed, http.StatusBadRequest, "missing id")
		return
	}

	out := h.reader.FetchOne(r.Context(), id, q.Get(paramQuery), parseBool(q.Get(paramForce)))

	status := http.StatusOK
	if out.Result.ErrorKind == domain.ErrorUnknownFeed {
		status = http.StatusNotFound
	}

	items := out.Items
	if items == nil {
		items = []domain.NormalizedItem{}
	}

	h.writeJSON(w, RouteFeed, status, feedResponse{Result: out.Result, Status: out.Status, Items: items})
}

type itemsResponse struct {
	GeneratedAt time.Time               `json:"generatedAt"`
	Count       int                     `json:"count"`
	Items       []domain.NormalizedItem `json:"items"`
}

func (h *Handler) handleItems(w http.ResponseWriter, r *http.Request) {
	snap := h.reader.Snapshot()

	items := snap.ItemsByCategory(strings.ToLower(strings.TrimSpace(r.URL.Query().Get(paramCategory))))
	if items == nil {
		items = []domain.NormalizedItem{}
	}

	h.writeJSON(w, RouteItems, http.StatusOK, itemsResponse{GeneratedAt: snap.GeneratedAt, Count: len(items), Items: items})
}

type clusterView struct {
	domain.NewsCluster
	Sources []string `json:"sources"`
}

type clustersResponse struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Clusters    []clusterView `json:"clusters"`
}

func (h *Handler) handleClusters(w http.ResponseWriter, _ *http.Request) {
	snap := h.reader.Snapshot()

	views := make([]clusterView, 0, len(snap.Clusters))
	for _, c := range snap.Clusters {
		views = append(views, clusterView{NewsCluster: c, Sources: c.Sources()})
	}

	h.writeJSON(w, RouteClusters, http.StatusOK, clustersResponse{GeneratedAt: snap.GeneratedAt, Clusters: views})
}

type mapResponse struct {
	Clusters []domain.MapCluster `json:"clusters"`
}

func (h *Handler) handleMap(w http.ResponseWriter, r *http.Request) {
	v, radius, err := parseViewport(r)
	if err != nil {
		h.writeError(w, RouteMap, http.StatusBadRequest, err.Error())
		return
	}

	clusters, err := h.reader.DrawMap(v, radius)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrInvalidViewport) {
			status = http.StatusBadRequest
		}

		h.writeError(w, RouteMap, status, err.Error())

		return
	}

	if clusters == nil {
		clusters = []domain.MapCluster{}
	}

	h.writeJSON(w, RouteMap, http.StatusOK, mapResponse{Clusters: clusters})
}

type refreshResponse struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Items       int                 `json:"items"`
	Clusters    int                 `json:"clusters"`
	Health      domain.HealthReport `json:"health"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !h.allowRequest(getClientIP(r)) {
		RefreshLimited.Inc()
		h.writeError(w, RouteRefresh, http.StatusTooManyRequests, "refresh rate limit exceeded")

		return
	}

	snap, err := h.refresher.Refresh(r.Context(), h.trigger, parseBool(r.URL.Query().Get(paramForce)))
	if err != nil {
		h.logger.Error().Err(err).Str(logFieldRoute, RouteRefresh).Msg("manual refresh failed")
		h.writeError(w, RouteRefresh, http.StatusInternalServerError, "refresh failed")

		return
	}

	h.writeJSON(w, RouteRefresh, http.StatusOK, refreshResponse{
		GeneratedAt: snap.GeneratedAt,
		Items:       len(snap.Items),
		Clusters:    len(snap.Clusters),
		Health:      snap.Health,
	})
}

func parseViewport(r *http.Request) (geocluster.Viewport, float64, error) {
	q := r.URL.Query()

	var (
		v    geocluster.Viewport
		errs []error
	)

	floatParam := func(name string, target *float64) {
		f, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			errs = append(errs, errors.New("invalid "+name))
			return
		}

		*target = f
	}

	intParam := func(name string, target *int) {
		n, err := strconv.Atoi(q.Get(name))
		if err != nil {
			errs = append(errs, errors.New("invalid "+name))
			return
		}

		*target = n
	}

	floatParam("west", &v.West)
	floatParam("south", &v.South)
	floatParam("east", &v.East)
	floatParam("north", &v.North)
	intParam("width", &v.Width)
	intParam("height", &v.Height)

	var radius float64
	if raw := q.Get(paramRadius); raw != "" {
		floatParam(paramRadius, &radius)
	}

	if len(errs) > 0 {
		return geocluster.Viewport{}, 0, errors.Join(errs...)
	}

	return v, radius, nil
}

func parseBool(raw string) bool {
	b, err := strconv.ParseBool(raw)
	return err == nil && b
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, route string, status int, msg string) {
	h.writeJSON(w, route, status, errorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, route string, status int, body any) {
	RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()

	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn().Err(err).Str(logFieldRoute, route).Msg("failed to write response")
	}
}

func (h *Handler) allowRequest(ip string) bool {
	h.limitersMu.Lock()

	limiter, ok := h.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(refreshLimitWindow/refreshLimitRequests), refreshLimitBurst)
		h.limiters[ip] = limiter
	}

	h.limitersMu.Unlock()

	return limiter.Allow()
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (common with reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to the host part of RemoteAddr
	if i := strings.LastIndex(r.RemoteAddr, ":"); i > 0 {
		return r.RemoteAddr[:i]
	}

	return r.RemoteAddr
}
