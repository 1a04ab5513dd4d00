package address

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a place name for comparison: NFD decomposition, combining marks
// removed, lower case, surrounding space trimmed. "Ciudad de México" becomes
// "ciudad de mexico".
func Normalize(s string) string {
	// transform.Chain keeps state, so it is built per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	return strings.ToLower(strings.TrimSpace(folded))
}

func SameName(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
