package tenancy

import (
	"strings"
	"unicode/utf8"
)

// MaxRawLen caps how many bytes of a rejected value are logged or stored.
const MaxRawLen = 256

// CleanRaw makes a rejected input safe for logs and text columns: invalid
// UTF-8 becomes U+FFFD, NUL bytes are dropped and the result is cut to at
// most MaxRawLen bytes on a rune boundary.
func CleanRaw(raw string) string {
	if len(raw) > 4*MaxRawLen {
		raw = raw[:4*MaxRawLen]
	}
	s := strings.ToValidUTF8(raw, "\uFFFD")
	s = strings.ReplaceAll(s, "\x00", "")
	if len(s) <= MaxRawLen {
		return s
	}
	cut := MaxRawLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
