package fetch

import "bytes"

const (
	rootScanBytes = 4096
	htmlScanBytes = 2048
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var feedRoots = [][]byte{
	[]byte("<rss"),
	[]byte("<feed"),
	[]byte("<rdf:rdf"),
}

var htmlMarkers = [][]byte{
	[]byte("<!doctype html"),
	[]byte("<html"),
}

var captchaMarkers = [][]byte{
	[]byte("g-recaptcha"),
	[]byte("hcaptcha"),
	[]byte("h-captcha"),
	[]byte("captcha-delivery"),
	[]byte("cf-challenge"),
	[]byte("challenge-platform"),
	[]byte("/cdn-cgi/challenge"),
	[]byte("are you a robot"),
	[]byte("verify you are human"),
	[]byte("attention required"),
}

// looksLikeFeed reports whether body is a plausible RSS/Atom/RDF document:
// it opens with an XML declaration or names a feed root near the top, and
// its head does not look like an HTML or captcha page.
func looksLikeFeed(body []byte) bool {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(trimmed) == 0 {
		return false
	}

	head := bytes.ToLower(prefix(trimmed, rootScanBytes))

	hasRoot := bytes.HasPrefix(head, []byte("<?xml"))
	for _, root := range feedRoots {
		if hasRoot {
			break
		}

		hasRoot = bytes.Contains(head, root)
	}

	if !hasRoot {
		return false
	}

	return !looksLikeHTMLPage(head)
}

// looksLikeHTMLPage checks the head of a lowercased body for HTML or captcha markers.
func looksLikeHTMLPage(lowerHead []byte) bool {
	head := prefix(lowerHead, htmlScanBytes)

	for _, m := range htmlMarkers {
		if bytes.Contains(head, m) {
			return true
		}
	}

	return looksLikeCaptcha(head)
}

func looksLikeCaptcha(lowerHead []byte) bool {
	for _, m := range captchaMarkers {
		if bytes.Contains(lowerHead, m) {
			return true
		}
	}

	return false
}

func prefix(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}

	return b
}
