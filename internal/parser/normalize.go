// Package parser turns free-form chat text into typed intents: an amount
// grammar for informal Vietnamese money notation, an accent-insensitive
// name normalizer, a fixed-pattern command grammar and a flexible token
// scanner for loosely worded debt/repayment sentences.
package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks and recomposes, which
// removes Vietnamese tone and vowel diacritics ("Tuấn" -> "Tuan").
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the accent/case-insensitive comparison key for a name:
// diacritics stripped, đ mapped to d, lower-cased, and everything that is
// not a letter or digit removed. Two names with equal normalized forms are
// treated as the same identity everywhere.
func Normalize(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r == 'đ':
			b.WriteRune('d')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
