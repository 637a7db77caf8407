package links

import "strings"

// Credibility tiers. Lower is more authoritative.
const (
	TierOfficial = 1
	TierMajor    = 2
	TierOther    = 3
)

// officialLabels match any host label, so gov.uk and army.mil both count.
var officialLabels = map[string]bool{"gov": true, "mil": true, "edu": true}

var defaultTier1Domains = map[string]bool{
	"reuters.com":        true,
	"apnews.com":         true,
	"bbc.co.uk":          true,
	"bbc.com":            true,
	"who.int":            true,
	"un.org":             true,
	"europa.eu":          true,
	"nato.int":           true,
	"afp.com":            true,
	"bloomberg.com":      true,
	"ft.com":             true,
	"wsj.com":            true,
	"nytimes.com":        true,
	"economist.com":      true,
	"washingtonpost.com": true,
}

var defaultTier2Domains = map[string]bool{
	"theguardian.com":      true,
	"cnn.com":              true,
	"npr.org":              true,
	"aljazeera.com":        true,
	"dw.com":               true,
	"france24.com":         true,
	"cbsnews.com":          true,
	"nbcnews.com":          true,
	"abcnews.go.com":       true,
	"politico.com":         true,
	"axios.com":            true,
	"thehill.com":          true,
	"cnbc.com":             true,
	"euronews.com":         true,
	"japantimes.co.jp":     true,
	"scmp.com":             true,
	"arstechnica.com":      true,
	"theverge.com":         true,
	"bleepingcomputer.com": true,
	"nature.com":           true,
	"science.org":          true,
}

// CredibilityRanker assigns credibility tiers from curated domain allow-lists.
type CredibilityRanker struct {
	tier1 map[string]bool
	tier2 map[string]bool
}

// NewCredibilityRanker builds a ranker from the built-in lists extended with
// comma-separated extra domains.
func NewCredibilityRanker(extraTier1, extraTier2 string) *CredibilityRanker {
	return &CredibilityRanker{
		tier1: mergeDomainList(defaultTier1Domains, extraTier1),
		tier2: mergeDomainList(defaultTier2Domains, extraTier2),
	}
}

// Tier returns the credibility tier of the URL's host.
func (r *CredibilityRanker) Tier(rawURL string) int {
	domain := Domain(rawURL)
	if domain == "" {
		return TierOther
	}

	if isOfficial(domain) {
		return TierOfficial
	}

	if matchesDomain(domain, r.tier1) {
		return TierOfficial
	}

	if matchesDomain(domain, r.tier2) {
		return TierMajor
	}

	return TierOther
}

// isOfficial reports whether a non-leading label is an official one, or the
// domain is a bare gov.<cc> pair. gov.example.com does not qualify.
func isOfficial(domain string) bool {
	labels := strings.Split(domain, ".")
	for i, label := range labels {
		if !officialLabels[label] {
			continue
		}

		if i > 0 || len(labels) == 2 {
			return true
		}
	}

	return false
}

// matchesDomain checks exact match and subdomain suffix match.
func matchesDomain(domain string, list map[string]bool) bool {
	if list[domain] {
		return true
	}

	for d := range list {
		if strings.HasSuffix(domain, "."+d) {
			return true
		}
	}

	return false
}

func mergeDomainList(base map[string]bool, extra string) map[string]bool {
	result := make(map[string]bool, len(base))
	for d := range base {
		result[d] = true
	}

	for _, d := range strings.Split(extra, ",") {
		d = NormalizeDomain(d)
		if d != "" {
			result[d] = true
		}
	}

	return result
}
