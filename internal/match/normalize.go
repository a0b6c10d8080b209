// Package match scores how well a discovered form control corresponds to a
// grant question and picks the best control for each question.
package match

import (
	"strings"
	"unicode"
)

// Normalize lower-cases s and drops every character that is not an ASCII
// letter or digit.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Words splits s on whitespace and returns the normalized, non-empty words
// longer than minLen runes.
func Words(s string, minLen int) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		n := Normalize(w)
		if len(n) > minLen {
			out = append(out, n)
		}
	}
	return out
}

// NameTokens splits an identifier such as "orgName", "org_name" or
// "Org-Name[0]" into lower-case alphanumeric tokens.
func NameTokens(s string) []string {
	var tokens []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, Normalize(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
