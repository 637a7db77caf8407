// Package htmlutils provides HTML processing helpers for feed content.
//
// The package handles:
//   - Plain-text extraction from summary HTML
//   - Image discovery in summary HTML
//   - <title> sniffing on error and captcha pages
//   - Rune-safe truncation
package htmlutils

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	ellipsis     = "…"
	titleScanMax = 64 * 1024
)

// PlainText returns the visible text of an HTML fragment with whitespace
// collapsed. Non-HTML input is returned with whitespace collapsed.
func PlainText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return collapseSpace(html.UnescapeString(fragment))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}

	doc.Find("script, style, noscript").Remove()

	return collapseSpace(doc.Text())
}

// FirstImage returns the src of the first <img> in an HTML fragment.
func FirstImage(fragment string) string {
	if !strings.Contains(fragment, "<img") && !strings.Contains(fragment, "<IMG") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img[src]").First().Attr("src")

	return strings.TrimSpace(src)
}

// Title returns the text of the first <title> element in body.
func Title(body []byte) string {
	if len(body) > titleScanMax {
		body = body[:titleScanMax]
	}

	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			inTitle = atom.Lookup(name) == atom.Title
		case html.TextToken:
			if inTitle {
				return collapseSpace(string(z.Text()))
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}

// Truncate shortens s to at most maxRunes runes, appending an ellipsis.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}

	return strings.TrimSpace(string(runes[:maxRunes])) + ellipsis
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
