package ingest

import (
	"strings"
	"unicode"
)

// Preprocess cleans extracted text before chunking. Control runes that PDF and OOXML
// extraction leak (NUL, ESC, form feeds) act as word breaks; invisible format runes such as
// soft hyphens, zero-width spaces and byte order marks are removed, as are U+FFFD
// replacement runes from invalid input. Runs of whitespace collapse to one space.
func Preprocess(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r), unicode.IsControl(r):
			pendingSpace = b.Len() > 0
		case r == unicode.ReplacementChar, unicode.Is(unicode.Cf, r):
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
