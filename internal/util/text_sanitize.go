package util

import (
	"strings"
	"unicode"
)

// SanitizeText cleans OCR or PDF output before it is stored and prompted on.
// Postgres rejects NUL, and extractors emit zero-width runes, form feeds and
// long runs of blank lines that only waste the prompt budget.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRightFunc(strings.Map(keepRune, line), unicode.IsSpace)
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func keepRune(ch rune) rune {
	switch {
	case ch == '\t':
		return ch
	case ch == '\f', ch == '\v', ch == '\r':
		return ' '
	case ch == '\uFFFD', ch == '\uFEFF', ch == '\u200B', ch == '\u200C', ch == '\u200D':
		return -1
	case ch < 0x20, ch == 0x7F:
		return -1
	}
	return ch
}
