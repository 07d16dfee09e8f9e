package transform

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// invisibleMarkers are zero-width characters some models leave in their output.
var invisibleMarkers = runes.Predicate(func(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\uFEFF':
		return true
	}
	return false
})

// StripInvisible removes zero-width spaces, joiners and byte order marks.
func StripInvisible(s string) string {
	out, _, err := transform.String(runes.Remove(invisibleMarkers), s)
	if err != nil {
		return s
	}
	return out
}
