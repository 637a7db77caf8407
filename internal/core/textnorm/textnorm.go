// Package textnorm turns headlines into comparable token sets and
// normalized title keys.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const minTokenRunes = 2

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"up": true, "about": true, "into": true, "through": true, "over": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"that": true, "which": true, "who": true, "whom": true, "this": true,
	"these": true, "those": true, "it": true, "its": true, "as": true,
	"after": true, "amid": true, "new": true, "says": true, "said": true,
}

// IsStopWord reports whether word is ignored when comparing titles.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Fold lowercases text and strips combining marks, so "Zürich" and
// "zurich" compare equal.
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}

	return strings.ToLower(folded)
}

// Words returns the folded, stopword-free words of text in input order.
func Words(text string) []string {
	fields := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := make([]string, 0, len(fields))

	for _, w := range fields {
		if len([]rune(w)) < minTokenRunes || IsStopWord(w) {
			continue
		}

		words = append(words, w)
	}

	return words
}

// TokenSet returns the distinct words of text.
func TokenSet(text string) map[string]struct{} {
	words := Words(text)

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	return set
}

// NormalizedTitle returns the title key used for deduplication: folded,
// punctuation stripped, stopwords removed and whitespace-joined.
func NormalizedTitle(title string) string {
	return strings.Join(Words(title), " ")
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets are identical (1); one
// empty set against a non-empty one scores zero.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}

	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	if len(a) > len(b) {
		a, b = b, a
	}

	intersection := 0

	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}
