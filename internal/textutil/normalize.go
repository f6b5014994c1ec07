package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// namePartPattern matches the separators found between name parts in target
// lines ("JOHN|PAUL|SMITH", "jane.doe", "Mary-Ann Lee").
var namePartPattern = regexp.MustCompile(`[|\s._\-]+`)

var (
	titleCaser = cases.Title(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// Normalize applies NFKC normalization and trims surrounding whitespace.
func Normalize(value string) string {
	return strings.TrimSpace(norm.NFKC.String(value))
}

// Digits returns only the ASCII digits of value.
func Digits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AlnumLower lowercases value and drops everything that is not a letter or digit.
func AlnumLower(value string) string {
	var b strings.Builder
	for _, r := range lowerCaser.String(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitNameParts splits a display name on the separators used in target lines.
// Empty parts are dropped; order is preserved.
func SplitNameParts(name string) []string {
	raw := namePartPattern.Split(strings.TrimSpace(name), -1)
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Title returns value with the first letter of each word upper-cased and the
// rest lower-cased ("JANE" -> "Jane").
func Title(value string) string {
	return titleCaser.String(value)
}

// Lower lowercases value using Unicode-aware casing.
func Lower(value string) string {
	return lowerCaser.String(value)
}
