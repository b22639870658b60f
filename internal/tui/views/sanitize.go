package views

import (
	"strings"
	"unicode/utf8"
)

// sanitizeForTerminal drops the codepoints tcell measures wrongly inside
// emoji sequences, so that a composed emoji renders as its base glyph. The
// reaction palette's ❤️ comes out as ❤ and a 👍🏽 as 👍.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !joinerOrModifier(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func joinerOrModifier(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
		return true
	}
	return false
}
