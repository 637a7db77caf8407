package parsers

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	"github.com/lueurxax/signal-ingest/internal/platform/htmlutils"
)

const maxGDELTErrorRunes = 200

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

type gdeltArticle struct {
	URL           string `json:"url"`
	URLMobile     string `json:"url_mobile"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"`
	SocialImage   string `json:"socialimage"`
	Domain        string `json:"domain"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
}

// parseGDELT maps the GDELT DOC 2.0 artlist response. GDELT reports query
// errors as plain text with a 200 status.
func parseGDELT(_ domain.FeedDescriptor, body []byte) ([]domain.NormalizedItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, unexpectedShape("gdelt error: " + htmlutils.Truncate(string(trimmed), maxGDELTErrorRunes))
	}

	var resp gdeltResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, unexpectedShape("gdelt json: " + err.Error())
	}

	items := make([]domain.NormalizedItem, 0, len(resp.Articles))

	for _, a := range resp.Articles {
		url := a.URL
		if url == "" {
			url = a.URLMobile
		}

		if url == "" {
			continue
		}

		item := domain.NormalizedItem{
			Title:       strings.TrimSpace(a.Title),
			URL:         url,
			PublishedAt: domain.EpochMillis(parseDate(a.SeenDate)),
			Source:      a.Domain,
			ImageURL:    a.SocialImage,
			Location:    a.SourceCountry,
		}

		if a.Language != "" {
			item.Tags = []string{a.Language}
		}

		items = append(items, item)
	}

	return items, nil
}
