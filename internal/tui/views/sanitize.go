package views

import (
	"strings"

	"github.com/rivo/tview"
)

// sanitizeForTerminal makes remote text safe for a single tview line.
// Tab titles, URLs and messages come from other users, so:
//   - line breaks and tabs collapse to a space
//   - other control characters and bidi overrides are dropped
//   - emoji modifiers that tcell measures wrongly (skin tones, ZWJ,
//     variation selectors) are dropped, leaving the base glyph
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case r < 0x20 || (r >= 0x7F && r <= 0x9F):
			return -1
		case isBidiControl(r), isEmojiModifier(r):
			return -1
		}
		return r
	}, s)
}

func isBidiControl(r rune) bool {
	return (r >= 0x202A && r <= 0x202E) || (r >= 0x2066 && r <= 0x2069) || r == 0x200E || r == 0x200F
}

func isEmojiModifier(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}

// clean prepares untrusted text for a tview cell or text view.
func clean(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}
