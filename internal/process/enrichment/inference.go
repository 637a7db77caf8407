package enrichment

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

const regionGlobal = "Global"

var (
	travelLevelRe  = regexp.MustCompile(`(?i)\blevel\s*([1-4])\b`)
	travelPlaceRe  = regexp.MustCompile(`\bin\s+(\p{Lu}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*)*)`)
	travelPrefixRe = regexp.MustCompile(`^\s*([\p{L}][\p{L}'.,\- ]{1,48}?)\s+-\s+level\s*[1-4]`)
	cveRe          = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)
	versionRe      = regexp.MustCompile(`v(\d+)/?$`)
	stateCodeRe    = regexp.MustCompile(`(?:^|,)\s*([A-Z]{2})(?:\s|,|;|$)`)
	researchPrefix = regexp.MustCompile(`(?i)^\s*(arxiv|biorxiv|medrxiv|ssrn)\s*[:\-]?\s*`)

	titleCaser = cases.Title(language.English)
)

var travelSeverity = map[string]string{
	"1": domain.SeverityLow,
	"2": domain.SeverityModerate,
	"3": domain.SeverityHigh,
	"4": domain.SeverityCritical,
}

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true,
	"DE": true, "DC": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true,
	"IN": true, "IA": true, "KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true, "MT": true, "NE": true,
	"NV": true, "NH": true, "NJ": true, "NM": true, "NY": true, "NC": true, "ND": true,
	"OH": true, "OK": true, "OR": true, "PA": true, "RI": true, "SC": true, "SD": true,
	"TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "PR": true, "GU": true, "VI": true,
}

// inferTravel reads the advisory level and the destination from
// "Mexico - Level 2: Exercise Increased Caution" or "... in Northern Chad".
func inferTravel(item *domain.NormalizedItem) {
	text := item.Title + " " + item.Summary

	if m := travelLevelRe.FindStringSubmatch(text); m != nil {
		item.Severity = travelSeverity[m[1]]
		item.AlertType = domain.AlertAdvisory
	}

	if m := travelPrefixRe.FindStringSubmatch(strings.ToLower(item.Title)); m != nil {
		item.RegionTag = titleCaser.String(strings.TrimSpace(m[1]))
		return
	}

	if m := travelPlaceRe.FindStringSubmatch(item.Title); m != nil {
		item.RegionTag = titleCaser.String(strings.TrimSpace(m[1]))
	}
}

func inferCyber(item *domain.NormalizedItem) {
	if cveRe.MatchString(item.Title) {
		item.AlertType = domain.AlertVulnerability
	}
}

// inferResearch tags the topic from the source and marks revised papers:
// a URL ending in v1 (or no version) is New, a higher version is Updated.
func inferResearch(item *domain.NormalizedItem) {
	topic := strings.TrimSpace(researchPrefix.ReplaceAllString(item.Source, ""))
	if topic == "" {
		topic = strings.TrimSpace(item.Source)
	}

	item.TopicTag = topic
	item.AlertType = domain.AlertNew

	if m := versionRe.FindStringSubmatch(item.URL); m != nil && m[1] != "1" {
		item.AlertType = domain.AlertUpdated
	}
}

// regionFromText returns the first US state code that stands alone or
// follows a comma in the given texts, else Global.
func regionFromText(texts ...string) string {
	for _, text := range texts {
		for _, m := range stateCodeRe.FindAllStringSubmatch(text, -1) {
			if usStates[m[1]] {
				return m[1]
			}
		}
	}

	return regionGlobal
}
