package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-ingest/internal/core/credentials"
	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/platform/observability"
)

const (
	testRSSBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>Storm hits coast</title><link>https://news.test/a</link></item>
</channel></rss>`
	testCaptchaBody = `<!DOCTYPE html><html><head><title>Just a moment...</title></head>
<body><div class="cf-challenge">Checking your browser</div></body></html>`
	headerContentType = "Content-Type"
	contentTypeXML    = "application/rss+xml"
	contentTypeJSON   = "application/json"
)

type staticProxies []domain.ProxyStrategy

func (s staticProxies) ProxyChain(domain.FeedDescriptor) []domain.ProxyStrategy {
	return s
}

func newTestFetcher(creds CredentialResolver, proxies ProxyResolver) *Fetcher {
	return New(Config{DefaultTimeout: 2 * time.Second}, creds, proxies, nil)
}

func TestFetchRequiresKeyWithoutNetwork(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		feed domain.FeedDescriptor
		want domain.ErrorKind
	}{
		{
			name: "client key missing",
			feed: domain.FeedDescriptor{ID: "a", URLTemplate: srv.URL, Format: domain.FormatJSON, RequiresKey: true},
			want: domain.ErrorRequiresKey,
		},
		{
			name: "server key missing",
			feed: domain.FeedDescriptor{ID: "b", URLTemplate: srv.URL, Format: domain.FormatRSS, RequiresKey: true, KeySource: domain.KeySourceServer},
			want: domain.ErrorMissingServerKey,
		},
	}

	f := newTestFetcher(credentials.NewResolver(map[string]string{"b": "local-only"}, nil, nil), nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Fetch(context.Background(), tt.feed, "")
			assert.Equal(t, tt.want, result.ErrorKind)
			assert.Zero(t, result.Attempts)
			assert.NotEmpty(t, result.ErrorMessage)
		})
	}

	assert.Zero(t, hits.Load())
}

func TestFetchRequiresConfig(t *testing.T) {
	f := newTestFetcher(nil, nil)
	feed := domain.FeedDescriptor{
		ID:             "outages",
		URLTemplate:    "${OUTAGE_URL}/query",
		Format:         domain.FormatArcGIS,
		RequiresConfig: true,
		MissingConfig:  []string{"OUTAGE_URL"},
	}

	result := f.Fetch(context.Background(), feed, "")
	assert.Equal(t, domain.ErrorRequiresConfig, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "OUTAGE_URL")
}

func TestFetchCaptchaIsInvalidRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testCaptchaBody))
	}))
	defer srv.Close()

	f := newTestFetcher(nil, nil)
	result := f.Fetch(context.Background(), domain.FeedDescriptor{ID: "news", URLTemplate: srv.URL, Format: domain.FormatRSS}, "")

	assert.Equal(t, domain.ErrorInvalidRSS, result.ErrorKind)
	assert.Equal(t, http.StatusOK, result.HTTPStatus)
	assert.Contains(t, result.ErrorMessage, "Just a moment...")
	assert.Equal(t, 1, result.Attempts)
}

func TestFetchRSSFallsBackToProxy(t *testing.T) {
	var proxied atomic.Value

	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html><head><title>Service Unavailable</title></head></html>"))
	})
	mux.HandleFunc("/relay", func(w http.ResponseWriter, r *http.Request) {
		proxied.Store(r.URL.Query().Get("url"))
		w.Header().Set(headerContentType, contentTypeXML)
		_, _ = w.Write([]byte(testRSSBody))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	proxies := staticProxies{{Name: "relay", Template: srv.URL + "/relay?url={url}"}}
	f := newTestFetcher(nil, proxies)

	result := f.Fetch(context.Background(), domain.FeedDescriptor{ID: "news", URLTemplate: srv.URL + "/feed", Format: domain.FormatRSS}, "")

	require.True(t, result.OK(), "unexpected error %s: %s", result.ErrorKind, result.ErrorMessage)
	assert.Equal(t, domain.ProxyCandidate("relay"), result.FallbackUsed)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, contentTypeXML, result.ContentType)
	assert.Equal(t, srv.URL+"/feed", proxied.Load())
	assert.Contains(t, string(result.RawBody), "Storm hits coast")
}

func TestFetchRSSAcceptsValidBodyRegardlessOfStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write([]byte("\xEF\xBB\xBF  " + testRSSBody))
	}))
	defer srv.Close()

	f := newTestFetcher(nil, nil)
	result := f.Fetch(context.Background(), domain.FeedDescriptor{ID: "news", URLTemplate: srv.URL, Format: domain.FormatRSS}, "")

	assert.True(t, result.OK())
	assert.Equal(t, http.StatusNonAuthoritativeInfo, result.HTTPStatus)
	assert.Equal(t, domain.CandidateDirect, result.FallbackUsed)
}

func TestFetchRSSReturnsLastResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testCaptchaBody))
	})
	mux.HandleFunc("/relay", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"upstream feed not found"}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(nil, staticProxies{{Name: "relay", Template: srv.URL + "/relay?url={url}"}})
	result := f.Fetch(context.Background(), domain.FeedDescriptor{ID: "news", URLTemplate: srv.URL + "/feed", Format: domain.FormatRSS}, "")

	assert.Equal(t, domain.HTTPErrorKind(http.StatusNotFound), result.ErrorKind)
	assert.Equal(t, http.StatusNotFound, result.HTTPStatus)
	assert.Equal(t, "upstream feed not found", result.ErrorMessage)
	assert.Equal(t, domain.ProxyCandidate("relay"), result.FallbackUsed)
}

func TestFetchRSSTimeoutMovesToNextCandidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	})
	mux.HandleFunc("/relay", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testRSSBody))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(nil, staticProxies{{Name: "relay", Template: srv.URL + "/relay?url={url}"}})
	feed := domain.FeedDescriptor{ID: "slow", URLTemplate: srv.URL + "/slow", Format: domain.FormatRSS, TimeoutMs: 800}

	start := time.Now()
	result := f.Fetch(context.Background(), feed, "")

	assert.True(t, result.OK())
	assert.Equal(t, domain.ProxyCandidate("relay"), result.FallbackUsed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchDataShortCircuitsOnFirstOK(t *testing.T) {
	var relayHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/data", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[]}`))
	})
	mux.HandleFunc("/relay", func(w http.ResponseWriter, _ *http.Request) {
		relayHits.Add(1)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(nil, staticProxies{{Name: "relay", Template: srv.URL + "/relay?url={url}"}})
	result := f.Fetch(context.Background(), domain.FeedDescriptor{ID: "quakes", URLTemplate: srv.URL + "/data", Format: domain.FormatGeoJSON}, "")

	assert.True(t, result.OK())
	assert.Equal(t, 1, result.Attempts)
	assert.Zero(t, relayHits.Load())
}

func TestFetchDataHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"API rate limit exceeded"}}`))
	}))
	defer srv.Close()

	f := newTestFetcher(nil, nil)
	result := f.Fetch(context.Background(), domain.FeedDescriptor{ID: "eia", URLTemplate: srv.URL, Format: domain.FormatJSON}, "")

	assert.Equal(t, domain.ErrorKind("http_429"), result.ErrorKind)
	assert.Equal(t, http.StatusTooManyRequests, result.HTTPStatus)
	assert.Equal(t, "API rate limit exceeded", result.ErrorMessage)
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := newTestFetcher(nil, nil)

	for _, format := range []domain.FeedFormat{domain.FormatRSS, domain.FormatJSON} {
		result := f.Fetch(context.Background(), domain.FeedDescriptor{ID: "down", URLTemplate: url, Format: format}, "")
		assert.Equal(t, domain.ErrorFetchFailed, result.ErrorKind, format)
		assert.Zero(t, result.HTTPStatus)
		assert.NotEmpty(t, result.ErrorMessage)
	}
}

func TestFetchSubstitutesKeyAndQuery(t *testing.T) {
	var (
		gotKey    atomic.Value
		gotHeader atomic.Value
		gotQuery  atomic.Value
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.URL.Query().Get("api_key"))
		gotHeader.Store(r.Header.Get("X-Api-Key"))
		gotQuery.Store(r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	creds := credentials.NewResolver(nil, map[string]string{"eia": "secret"}, nil)
	f := newTestFetcher(creds, nil)

	feed := domain.FeedDescriptor{
		ID:            "eia-crude",
		URLTemplate:   srv.URL + "/v2?q={query}",
		Format:        domain.FormatJSON,
		RequiresKey:   true,
		KeyGroup:      "eia",
		KeyParam:      "api_key",
		KeyHeader:     "X-Api-Key",
		SupportsQuery: true,
		DefaultQuery:  "crude oil",
	}

	result := f.Fetch(context.Background(), feed, "")
	require.True(t, result.OK())
	assert.Equal(t, "secret", gotKey.Load())
	assert.Equal(t, "secret", gotHeader.Load())
	assert.Equal(t, "crude oil", gotQuery.Load())
}

func TestBuildCandidates(t *testing.T) {
	proxies := []domain.ProxyStrategy{{Name: "a", Template: "https://a.test/?u={url}"}}

	got := buildCandidates("https://feeds.test/rss?x=1", proxies, false)
	require.Len(t, got, 3)
	assert.Equal(t, "https://feeds.test/rss?x=1", got[0].url)
	assert.Equal(t, domain.CandidateInsecure, got[1].label)
	assert.Equal(t, "http://feeds.test/rss?x=1", got[1].url)
	assert.Equal(t, "https://a.test/?u=https%3A%2F%2Ffeeds.test%2Frss%3Fx%3D1", got[2].url)

	plain := buildCandidates("http://feeds.test/rss", nil, false)
	require.Len(t, plain, 1)

	keyed := buildCandidates("https://feeds.test/rss?api_key=s3cret", proxies, true)
	require.Len(t, keyed, 1)
	assert.Equal(t, domain.CandidateDirect, keyed[0].label)
}

func TestFetchKeyedFeedNeverLeavesDirectCandidate(t *testing.T) {
	var relayHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/data", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/relay", func(w http.ResponseWriter, _ *http.Request) {
		relayHits.Add(1)
		_, _ = w.Write([]byte(`[]`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	creds := credentials.NewResolver(map[string]string{"quotes": "SECRET123"}, nil, nil)
	f := newTestFetcher(creds, staticProxies{{Name: "relay", Template: srv.URL + "/relay?url={url}"}})

	feed := domain.FeedDescriptor{ID: "quotes", URLTemplate: srv.URL + "/data", Format: domain.FormatJSON, RequiresKey: true, KeyParam: "api_key"}

	result := f.Fetch(context.Background(), feed, "")
	assert.Equal(t, domain.HTTPErrorKind(http.StatusBadGateway), result.ErrorKind)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, domain.CandidateDirect, result.FallbackUsed)
	assert.Zero(t, relayHits.Load())
}

func TestFetchRSSNonOKSuccessIsNotInvalidRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(testCaptchaBody))
	}))
	defer srv.Close()

	f := newTestFetcher(nil, nil)
	result := f.Fetch(context.Background(), domain.FeedDescriptor{ID: "news", URLTemplate: srv.URL, Format: domain.FormatRSS}, "")

	assert.Equal(t, domain.HTTPErrorKind(http.StatusAccepted), result.ErrorKind)
	assert.Equal(t, http.StatusAccepted, result.HTTPStatus)
}

func TestFetchCountsFeedErrorOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	kind := string(domain.HTTPErrorKind(http.StatusTeapot))
	counter := observability.FeedErrors.WithLabelValues("teapot", kind)
	before := testutil.ToFloat64(counter)

	f := newTestFetcher(nil, nil)
	f.Fetch(context.Background(), domain.FeedDescriptor{ID: "teapot", URLTemplate: srv.URL, Format: domain.FormatJSON}, "")

	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 1e-9)
}

func TestBuildTargetKeyPlaceholder(t *testing.T) {
	feed := domain.FeedDescriptor{URLTemplate: "https://firms.test/api/{key}/world/1", KeyParam: "ignored"}

	target, header := buildTarget(feed, "", &credentials.Key{Value: "abc", Param: "ignored"})
	assert.Equal(t, "https://firms.test/api/abc/world/1", target)
	assert.Empty(t, header)
}

func TestSplitBudget(t *testing.T) {
	assert.Equal(t, []time.Duration{10 * time.Second}, splitBudget(10*time.Second, 1))

	got := splitBudget(12*time.Second, 4)
	assert.Equal(t, []time.Duration{9 * time.Second, time.Second, time.Second, time.Second}, got)

	floored := splitBudget(time.Second, 3)
	assert.Equal(t, 750*time.Millisecond, floored[0])
	assert.Equal(t, minAttemptBudget, floored[1])
}

func TestLooksLikeFeed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "xml declaration", body: testRSSBody, want: true},
		{name: "atom without declaration", body: `<feed xmlns="http://www.w3.org/2005/Atom"><title>x</title></feed>`, want: true},
		{name: "rdf", body: `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"></rdf:RDF>`, want: true},
		{name: "captcha html", body: testCaptchaBody, want: false},
		{name: "xhtml error page", body: `<?xml version="1.0"?><!DOCTYPE html><html><body>Error</body></html>`, want: false},
		{name: "recaptcha in xml", body: `<?xml version="1.0"?><div class="g-recaptcha"></div>`, want: false},
		{name: "json", body: `{"items":[]}`, want: false},
		{name: "empty", body: "   ", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeFeed([]byte(tt.body)))
		})
	}
}

func TestUpstreamReason(t *testing.T) {
	assert.Equal(t, "quota", upstreamReason([]byte(`{"detail":"quota"}`)))
	assert.Equal(t, "Forbidden page", upstreamReason([]byte(`<html><title>Forbidden page</title></html>`)))
	assert.Empty(t, upstreamReason([]byte(`{"ok":false}`)))
	assert.Empty(t, upstreamReason(nil))
	assert.True(t, strings.HasPrefix(statusReason(http.StatusBadGateway), "HTTP 502"))
}
