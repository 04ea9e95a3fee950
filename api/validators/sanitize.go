package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims the input, folds runs of whitespace into one space, drops
// control characters and cuts the result to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	n := 0
	for _, r := range strings.TrimSpace(input) {
		if maxLen > 0 && n >= maxLen {
			break
		}
		switch {
		case unicode.IsSpace(r):
			if space {
				continue
			}
			space = true
			r = ' '
		case unicode.IsControl(r):
			continue
		default:
			space = false
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

// SanitizePhone keeps the digits of a phone number and a leading "+".
func SanitizePhone(input string) string {
	input = strings.TrimSpace(input)
	var b strings.Builder
	for i, r := range input {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
