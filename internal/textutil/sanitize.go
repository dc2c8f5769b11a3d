package textutil

import (
	"strings"
	"unicode"
)

// safeFileNamePunct lists the punctuation kept verbatim by MakeSafeFilename.
const safeFileNamePunct = " ()[]-_{}."

// MakeSafeFilename converts a display name into something usable as a file
// name on every platform. Letters and digits (any script) and the characters
// in safeFileNamePunct are kept; everything else becomes a dash. Trailing
// whitespace is removed.
func MakeSafeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsNumber(r):
			b.WriteRune(r)
		case strings.ContainsRune(safeFileNamePunct, r):
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}
