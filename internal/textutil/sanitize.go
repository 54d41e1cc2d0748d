package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes accented letters and drops the combining marks, so
// "Einfahrt Süd" becomes "Einfahrt Sud". Transformers carry state, so each
// call builds its own chain.
func stripMarks(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// SafeName converts an identifier into a filename token. Accents are folded,
// ASCII letters, digits and hyphens are kept, and every other rune becomes an
// underscore. Runs of underscores collapse.
// Returns "unknown" for input with nothing usable.
func SafeName(value string) string {
	value = strings.TrimSpace(stripMarks(value))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range value {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
