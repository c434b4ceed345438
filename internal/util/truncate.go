package util

// Clip bounds a user-supplied string to max runes, so stored topics and
// log lines stay small without splitting a multibyte character.
func Clip(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
