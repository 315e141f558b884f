package util

// TruncateRunes cuts s to at most max runes. max <= 0 leaves s untouched.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
