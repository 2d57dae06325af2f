package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// VisualWidth returns the display width of text, accounting for wide characters
func VisualWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate cuts s to maxLen columns, ending in "..." when ellipsis is set
// and there is room for it.
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	if maxLen <= 0 {
		return ""
	}
	if VisualWidth(s) <= maxLen {
		return s
	}
	if ellipsis && maxLen > 3 {
		return runewidth.Truncate(s, maxLen, "...")
	}
	return runewidth.Truncate(s, maxLen, "")
}

// Wrap breaks text into lines of at most width columns. Payloads are mostly
// one long JSON token, so it wraps on columns rather than on words.
func Wrap(text string, width int) string {
	if width <= 0 || VisualWidth(text) <= width {
		return text
	}

	var b strings.Builder
	line := 0
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if line+w > width {
			b.WriteByte('\n')
			line = 0
		}
		b.WriteRune(r)
		line += w
	}
	return b.String()
}
