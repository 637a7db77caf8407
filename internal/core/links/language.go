package links

import "unicode"

// nonLatinThreshold is the share of non-Latin letters at which text is
// flagged as non-English.
const nonLatinThreshold = 0.3

// IsNonEnglish reports whether a meaningful share of the letters in text fall
// outside the Latin script. Text without letters is never flagged.
func IsNonEnglish(text string) bool {
	letters, nonLatin := 0, 0

	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}

		letters++

		if !unicode.Is(unicode.Latin, r) {
			nonLatin++
		}
	}

	if letters == 0 {
		return false
	}

	return float64(nonLatin)/float64(letters) >= nonLatinThreshold
}
