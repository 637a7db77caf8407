// Package fetch executes one feed fetch against a prioritized list of URL
// candidates and encodes every failure mode into the returned FetchResult.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-ingest/internal/core/credentials"
	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
)

// ErrTooManyRedirects indicates too many HTTP redirects.
var ErrTooManyRedirects = errors.New("too many redirects")

const (
	defaultTimeout   = 12 * time.Second
	defaultMaxBodyMB = 8
	bytesPerMB       = 1024 * 1024
	maxRedirects     = 5

	defaultUserAgent = "Mozilla/5.0 (compatible; SignalIngest/1.0; +https://github.com/lueurxax/signal-ingest)"

	acceptFeed = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	acceptJSON = "application/json, application/geo+json;q=0.9, */*;q=0.5"
	acceptCSV  = "text/csv, text/plain;q=0.9, */*;q=0.5"

	candidateKindProxy = "proxy"

	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeHTTP    = "http_error"
	outcomeError   = "error"

	logFieldFeed      = "feed"
	logFieldCandidate = "candidate"
	logFieldStatus    = "status"
	logFieldKind      = "kind"
)

// CredentialResolver returns the key to use for a feed.
type CredentialResolver interface {
	Resolve(feed domain.FeedDescriptor) (credentials.Key, bool)
}

// ProxyResolver returns the proxy strategies of a feed in order.
type ProxyResolver interface {
	ProxyChain(feed domain.FeedDescriptor) []domain.ProxyStrategy
}

// Config tunes the fetcher.
type Config struct {
	// DefaultTimeout is the per-feed budget when a descriptor sets none.
	DefaultTimeout time.Duration
	UserAgent      string
	MaxBodyMB      int
	// HostRPS limits requests per upstream host; zero disables the limit.
	HostRPS float64
	// Client overrides the HTTP client.
	Client *http.Client
}

// Fetcher runs candidate fallback for one feed at a time. It is safe for
// concurrent use.
type Fetcher struct {
	client         *http.Client
	creds          CredentialResolver
	proxies        ProxyResolver
	limiter        *hostLimiter
	defaultTimeout time.Duration
	userAgent      string
	maxBodyBytes   int64
	logger         *zerolog.Logger
	now            func() time.Time
}

// New creates a Fetcher. creds and proxies may be nil.
func New(cfg Config, creds CredentialResolver, proxies ProxyResolver, logger *zerolog.Logger) *Fetcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultTimeout
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	if cfg.MaxBodyMB <= 0 {
		cfg.MaxBodyMB = defaultMaxBodyMB
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}

				return nil
			},
		}
	}

	return &Fetcher{
		client:         client,
		creds:          creds,
		proxies:        proxies,
		limiter:        newHostLimiter(cfg.HostRPS),
		defaultTimeout: cfg.DefaultTimeout,
		userAgent:      cfg.UserAgent,
		maxBodyBytes:   int64(cfg.MaxBodyMB) * bytesPerMB,
		logger:         logger,
		now:            time.Now,
	}
}

// response is what one HTTP attempt returned.
type response struct {
	status      int
	contentType string
	body        []byte
	label       string
}

// Fetch produces exactly one FetchResult for feed. It never returns an
// error; failures are encoded in ErrorKind.
func (f *Fetcher) Fetch(ctx context.Context, feed domain.FeedDescriptor, query string) domain.FetchResult {
	start := f.now()
	result := domain.FetchResult{FeedID: feed.ID, Query: query, FetchedAt: start}

	var key *credentials.Key

	if feed.RequiresKey {
		resolved, ok := f.resolveKey(feed)
		if !ok {
			result.ErrorKind = domain.ErrorRequiresKey
			if feed.KeySource == domain.KeySourceServer {
				result.ErrorKind = domain.ErrorMissingServerKey
			}

			result.ErrorMessage = fmt.Sprintf("no API key configured for %s", feed.DisplayName())

			return f.finish(feed, result, start)
		}

		key = &resolved
	}

	if feed.RequiresConfig && feed.Unresolved() {
		result.ErrorKind = domain.ErrorRequiresConfig
		result.ErrorMessage = fmt.Sprintf("missing configuration: %v", feed.MissingConfig)

		return f.finish(feed, result, start)
	}

	target, header := buildTarget(feed, query, key)
	candidates := buildCandidates(target, f.proxyChain(feed), key != nil)

	if feed.Format == domain.FormatRSS {
		result = f.fetchFeedXML(ctx, feed, candidates, header, result)
	} else {
		result = f.fetchData(ctx, feed, candidates, header, result)
	}

	return f.finish(feed, result, start)
}

func (f *Fetcher) resolveKey(feed domain.FeedDescriptor) (credentials.Key, bool) {
	if f.creds == nil {
		return credentials.Key{}, false
	}

	return f.creds.Resolve(feed)
}

func (f *Fetcher) proxyChain(feed domain.FeedDescriptor) []domain.ProxyStrategy {
	if f.proxies == nil {
		return nil
	}

	return f.proxies.ProxyChain(feed)
}

// fetchFeedXML tries candidates until one returns a valid feed document,
// regardless of HTTP status.
func (f *Fetcher) fetchFeedXML(ctx context.Context, feed domain.FeedDescriptor, candidates []candidate, header http.Header, result domain.FetchResult) domain.FetchResult {
	budgets := splitBudget(feed.Timeout(f.defaultTimeout), len(candidates))

	var (
		last    *response
		lastErr error
	)

	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}

		result.Attempts++

		resp, err := f.attempt(ctx, feed, c, header, budgets[i])
		if err != nil {
			lastErr = err
			continue
		}

		last = resp

		if looksLikeFeed(resp.body) {
			observability.FetchAttempts.WithLabelValues(c.kind, outcomeOK).Inc()
			return withResponse(result, resp)
		}

		observability.FetchAttempts.WithLabelValues(c.kind, outcomeInvalid).Inc()

		f.logger.Debug().
			Str(logFieldFeed, feed.ID).
			Str(logFieldCandidate, c.label).
			Int(logFieldStatus, resp.status).
			Msg("candidate returned no valid feed document")
	}

	if last == nil {
		return fetchFailed(ctx, result, lastErr)
	}

	result = withResponse(result, last)

	if last.status == http.StatusOK {
		result.ErrorKind = domain.ErrorInvalidRSS
		result.ErrorMessage = invalidFeedReason(last.body)
	} else {
		result.ErrorKind = domain.HTTPErrorKind(last.status)
		result.ErrorMessage = httpReason(last)
	}

	return result
}

// fetchData tries candidates until one returns a 2xx status.
func (f *Fetcher) fetchData(ctx context.Context, feed domain.FeedDescriptor, candidates []candidate, header http.Header, result domain.FetchResult) domain.FetchResult {
	budgets := fullBudget(feed.Timeout(f.defaultTimeout), len(candidates))

	var (
		last    *response
		lastErr error
	)

	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}

		result.Attempts++

		resp, err := f.attempt(ctx, feed, c, header, budgets[i])
		if err != nil {
			lastErr = err
			continue
		}

		last = resp

		if isSuccess(resp.status) {
			observability.FetchAttempts.WithLabelValues(c.kind, outcomeOK).Inc()
			return withResponse(result, resp)
		}

		observability.FetchAttempts.WithLabelValues(c.kind, outcomeHTTP).Inc()
	}

	if last == nil {
		return fetchFailed(ctx, result, lastErr)
	}

	result = withResponse(result, last)
	result.ErrorKind = domain.HTTPErrorKind(last.status)
	result.ErrorMessage = httpReason(last)

	return result
}

// attempt issues one bounded HTTP request. Transport errors and timeouts are
// returned; any HTTP status is a response.
func (f *Fetcher) attempt(ctx context.Context, feed domain.FeedDescriptor, c candidate, header http.Header, budget time.Duration) (*response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	resp, err := f.do(attemptCtx, feed, c, header)
	if err != nil {
		observability.FetchAttempts.WithLabelValues(c.kind, outcomeError).Inc()

		f.logger.Debug().
			Err(err).
			Str(logFieldFeed, feed.ID).
			Str(logFieldCandidate, c.label).
			Msg("fetch attempt failed")

		return nil, err
	}

	return resp, nil
}

func (f *Fetcher) do(ctx context.Context, feed domain.FeedDescriptor, c candidate, header http.Header) (*response, error) {
	if err := f.limiter.Wait(ctx, c.url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptFor(feed.Format))
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	if c.kind == domain.CandidateDirect {
		for name, values := range header {
			req.Header[name] = values
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
		label:       c.label,
	}, nil
}

func (f *Fetcher) finish(feed domain.FeedDescriptor, result domain.FetchResult, start time.Time) domain.FetchResult {
	observability.FetchDuration.WithLabelValues(string(feed.Format)).Observe(f.now().Sub(start).Seconds())

	if result.OK() {
		return result
	}

	observability.FeedErrors.WithLabelValues(feed.ID, string(result.ErrorKind)).Inc()

	f.logger.Warn().
		Str(logFieldFeed, feed.ID).
		Str(logFieldKind, string(result.ErrorKind)).
		Int(logFieldStatus, result.HTTPStatus).
		Str("message", result.ErrorMessage).
		Msg("feed fetch failed")

	return result
}

func withResponse(result domain.FetchResult, resp *response) domain.FetchResult {
	result.HTTPStatus = resp.status
	result.ContentType = resp.contentType
	result.RawBody = resp.body
	result.FallbackUsed = resp.label

	return result
}

func fetchFailed(ctx context.Context, result domain.FetchResult, lastErr error) domain.FetchResult {
	result.ErrorKind = domain.ErrorFetchFailed

	switch {
	case lastErr != nil:
		result.ErrorMessage = lastErr.Error()
	case ctx.Err() != nil:
		result.ErrorMessage = ctx.Err().Error()
	default:
		result.ErrorMessage = "no candidates attempted"
	}

	return result
}

func invalidFeedReason(body []byte) string {
	if reason := upstreamReason(body); reason != "" {
		return "not a valid feed document: " + reason
	}

	return "not a valid feed document"
}

func httpReason(resp *response) string {
	if reason := upstreamReason(resp.body); reason != "" {
		return reason
	}

	return statusReason(resp.status)
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func acceptFor(format domain.FeedFormat) string {
	switch format {
	case domain.FormatRSS:
		return acceptFeed
	case domain.FormatCSV:
		return acceptCSV
	default:
		return acceptJSON
	}
}
