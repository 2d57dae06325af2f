// Package sanitize makes record payloads safe to print on a terminal or in a
// single log line. Producers other than the order service may write to the
// topic, so payload bytes are untrusted.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

// StripANSI removes ANSI escape sequences.
func StripANSI(s string) string {
	return ansi.Strip(s)
}

// Line is Payload for values that are already strings, such as record keys
// and error texts.
func Line(s string) string {
	return Payload([]byte(s))
}

// Payload returns b as one printable line. Escape sequences are removed,
// other control characters become spaces and invalid UTF-8 is replaced.
func Payload(b []byte) string {
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, StripANSI(s))
}
