package parsers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

const (
	maxKEVItems    = 100
	nvdDetailURL   = "https://nvd.nist.gov/vuln/detail/"
	ransomwareUsed = "known"
)

type kevCatalog struct {
	Vulnerabilities []kevEntry `json:"vulnerabilities"`
}

type kevEntry struct {
	CVEID             string `json:"cveID"`
	VendorProject     string `json:"vendorProject"`
	Product           string `json:"product"`
	VulnerabilityName string `json:"vulnerabilityName"`
	DateAdded         string `json:"dateAdded"`
	ShortDescription  string `json:"shortDescription"`
	RequiredAction    string `json:"requiredAction"`
	DueDate           string `json:"dueDate"`
	Ransomware        string `json:"knownRansomwareCampaignUse"`
}

// parseKEV maps the CISA Known Exploited Vulnerabilities catalog, newest
// additions first.
func parseKEV(_ domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	var catalog kevCatalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, unexpectedShape("kev json: " + err.Error())
	}

	entries := catalog.Vulnerabilities
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].DateAdded > entries[j].DateAdded })

	if len(entries) > maxKEVItems {
		entries = entries[:maxKEVItems]
	}

	items := make([]domain.NormalizedItem, 0, len(entries))

	for _, e := range entries {
		severity := domain.SeverityHigh
		if strings.EqualFold(e.Ransomware, ransomwareUsed) {
			severity = domain.SeverityCritical
		}

		summary := e.ShortDescription
		if e.DueDate != "" {
			summary = fmt.Sprintf("%s Remediate by %s.", summary, e.DueDate)
		}

		items = append(items, domain.NormalizedItem{
			Title:       fmt.Sprintf("%s: %s", e.CVEID, e.VulnerabilityName),
			URL:         nvdDetailURL + e.CVEID,
			Summary:     strings.TrimSpace(summary),
			PublishedAt: domain.EpochMillis(parseDate(e.DateAdded)),
			Severity:    severity,
			Tags:        nonEmpty(e.VendorProject, e.Product),
		})
	}

	return items, nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))

	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}
