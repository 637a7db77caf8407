package fetch

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/lueurxax/signal-ingest/internal/core/credentials"
	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

const (
	placeholderQuery = "{query}"
	placeholderKey   = "{key}"

	schemeHTTPS = "https"
	schemeHTTP  = "http"
)

// candidate is one URL to try for a feed.
type candidate struct {
	label string
	kind  string
	url   string
}

// buildTarget substitutes query and key into the URL template and returns the
// direct URL with any key header to send.
func buildTarget(feed domain.FeedDescriptor, query string, key *credentials.Key) (string, http.Header) {
	target := strings.ReplaceAll(feed.URLTemplate, placeholderQuery, url.QueryEscape(feed.EffectiveQuery(query)))
	header := http.Header{}

	if key == nil {
		return strings.ReplaceAll(target, placeholderKey, ""), header
	}

	switch {
	case strings.Contains(target, placeholderKey):
		target = strings.ReplaceAll(target, placeholderKey, url.PathEscape(key.Value))
	case key.Param != "":
		target = withQueryParam(target, key.Param, key.Value)
	}

	if key.Header != "" {
		header.Set(key.Header, key.Value)
	}

	return target, header
}

func withQueryParam(rawURL, name, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	q.Set(name, value)
	u.RawQuery = q.Encode()

	return u.String()
}

// buildCandidates orders direct, insecure downgrade and proxy candidates.
// A keyed target only gets the direct candidate: the key never travels over
// plain http or through a third-party relay.
func buildCandidates(target string, proxies []domain.ProxyStrategy, keyed bool) []candidate {
	out := []candidate{{label: domain.CandidateDirect, kind: domain.CandidateDirect, url: target}}
	if keyed {
		return out
	}

	if u, err := url.Parse(target); err == nil && strings.EqualFold(u.Scheme, schemeHTTPS) {
		u.Scheme = schemeHTTP
		out = append(out, candidate{label: domain.CandidateInsecure, kind: domain.CandidateInsecure, url: u.String()})
	}

	for _, p := range proxies {
		out = append(out, candidate{label: domain.ProxyCandidate(p.Name), kind: candidateKindProxy, url: p.Rewrite(target)})
	}

	return out
}
