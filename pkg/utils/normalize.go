package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var upper = cases.Upper(language.Und)

// NormalizeLabel folds a free-text label to an accent-free, upper-case,
// single-spaced key: " Dueño  cc " becomes "DUENO CC".
func NormalizeLabel(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(upper.String(stripped)), " ")
}

// HasNormalizedPrefix reports whether s starts with prefix after normalization
func HasNormalizedPrefix(s, prefix string) bool {
	return strings.HasPrefix(NormalizeLabel(s), NormalizeLabel(prefix))
}
