// Package tokenizer provides text normalisation for the ranking engine. It
// lower-cases input, maps every character outside [a-z0-9\s-] to a space, and
// splits on whitespace runs. No stop-word removal and no stemming: route
// codes, airline names, and equipment tags must survive verbatim so term
// statistics stay exact.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize breaks text into lowercase tokens. It is pure and deterministic:
// the same input always yields the same token sequence.
func Tokenize(text string) []string {
	mapped := strings.Map(normalizeRune, strings.ToLower(text))
	return strings.Fields(mapped)
}

// normalizeRune keeps lowercase letters, digits, hyphens, and whitespace;
// every other rune becomes a space so it acts as a token boundary.
func normalizeRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return r
	case r >= '0' && r <= '9':
		return r
	case r == '-':
		return r
	case unicode.IsSpace(r):
		return r
	default:
		return ' '
	}
}
