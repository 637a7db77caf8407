package links

import (
	"net/url"
	"sort"
	"strings"
)

const (
	wwwPrefix      = "www."
	trackingPrefix = "utm_"
)

// Canonicalize returns the stable form of rawURL used as a dedupe and match
// key: lowercase scheme and host, no fragment, no utm_* parameters, and the
// remaining query pairs kept verbatim and sorted by key. The result is
// idempotent.
// Unparseable or relative input is returned trimmed.
func Canonicalize(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return trimmed
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	parsed.RawQuery = canonicalQuery(parsed.RawQuery)
	parsed.ForceQuery = false

	return parsed.String()
}

// canonicalQuery filters tracking pairs out of a raw query without
// re-encoding it, so pairs url.ParseQuery would reject (bad escapes, ';')
// survive and keep distinct URLs distinct. Pairs with equal keys keep
// their relative order.
func canonicalQuery(raw string) string {
	if raw == "" {
		return ""
	}

	pairs := make([]string, 0, strings.Count(raw, "&")+1)

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" || isTrackingParam(queryKey(pair)) {
			continue
		}

		pairs = append(pairs, pair)
	}

	sort.SliceStable(pairs, func(i, j int) bool { return queryKey(pairs[i]) < queryKey(pairs[j]) })

	return strings.Join(pairs, "&")
}

func queryKey(pair string) string {
	key, _, _ := strings.Cut(pair, "=")
	if unescaped, err := url.QueryUnescape(key); err == nil {
		return unescaped
	}

	return key
}

func isTrackingParam(key string) bool {
	return strings.HasPrefix(strings.ToLower(key), trackingPrefix)
}

// Domain returns the normalized host of rawURL without a www. prefix.
func Domain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	return NormalizeDomain(parsed.Hostname())
}

// NormalizeDomain lowercases host and strips a leading www.
func NormalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, wwwPrefix)

	return host
}
