package workbook

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks so "Execução" and "Execucao"
// canonicalize identically.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Canonical reduces a cell to the form used for header matching and
// raw-map keys: trimmed, lower-cased, diacritics stripped, every
// non-alphanumeric run collapsed to a single underscore.
func Canonical(cell string) string {
	s := strings.TrimSpace(cell)
	s, _, _ = transform.String(stripAccents, s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
