package fetch

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/lueurxax/signal-ingest/internal/platform/htmlutils"
)

const maxReasonRunes = 240

// reasonPaths are the JSON fields upstream APIs use for error text.
var reasonPaths = []string{
	"error.message",
	"message",
	"error_description",
	"error",
	"detail",
	"errors.0.message",
	"errors.0.detail",
	"title",
}

// upstreamReason extracts the human-readable reason an upstream gave for a
// failure, from a JSON error payload or the <title> of an HTML page.
func upstreamReason(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	if gjson.ValidBytes(trimmed) {
		for _, path := range reasonPaths {
			r := gjson.GetBytes(trimmed, path)
			if r.Type == gjson.String && r.String() != "" {
				return htmlutils.Truncate(r.String(), maxReasonRunes)
			}
		}

		return ""
	}

	return htmlutils.Truncate(htmlutils.Title(trimmed), maxReasonRunes)
}

// statusReason formats a fallback message for an HTTP status.
func statusReason(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("HTTP %d %s", status, text)
	}

	return fmt.Sprintf("HTTP %d", status)
}
