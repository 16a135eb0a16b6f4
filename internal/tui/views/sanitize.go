package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal makes untrusted message text safe to draw. It drops
// control characters (including ESC, so no terminal sequences get through)
// and the emoji modifiers tcell measures wrongly: skin tones, ZWJ and
// variation selectors. Newlines and tabs become spaces.
func sanitizeForTerminal(s string) string {
	return sanitize(s, false)
}

// sanitizeBlock is sanitizeForTerminal for multi-line text.
func sanitizeBlock(s string) string {
	return sanitize(s, true)
}

func sanitize(s string, keepLines bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' && keepLines:
			b.WriteByte('\n')
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteByte(' ')
		case unicode.IsControl(r), isProblematicRune(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tone modifiers
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
