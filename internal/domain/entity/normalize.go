package entity

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, trims surrounding whitespace, and collapses every
// internal whitespace run to a single space.  All text comparisons in the
// index and the aggregator go through this function so that "Asthma,
// Bronchial " and "asthma, bronchial" compare equal.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Tokens splits s into lowercase alphanumeric tokens, dropping punctuation
// and empty fragments.  Used by the token-overlap similarity calculator and
// by indication-condition matching.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// TokenSet returns the distinct tokens of s.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokens(s) {
		set[tok] = struct{}{}
	}
	return set
}
