package core

// TruncateRunes bounds s to at most max runes. Unlike a byte slice it never
// splits a multibyte character, so the result is always valid UTF-8.
func TruncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
