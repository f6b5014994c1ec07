package selector

import (
	"strings"
	"unicode/utf8"
)

// Exclusion drops candidates that match a style filter regardless of their
// source. It is applied after the strength filter and skipped for an identity
// when fewer than Budget candidates would survive it.
type Exclusion struct {
	// ASCIIOnly drops candidates containing any non-ASCII rune.
	ASCIIOnly bool
	// Patterns are case-insensitive substrings that drop a candidate.
	Patterns []string
}

func (x Exclusion) enabled() bool {
	return x.ASCIIOnly || len(x.Patterns) > 0
}

func (x Exclusion) compile() Exclusion {
	out := Exclusion{ASCIIOnly: x.ASCIIOnly}
	for _, p := range x.Patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out.Patterns = append(out.Patterns, p)
		}
	}
	return out
}

// Excludes reports whether password is dropped by the filter.
func (x Exclusion) Excludes(password string) bool {
	if x.ASCIIOnly && !isASCII(password) {
		return true
	}
	if len(x.Patterns) == 0 {
		return false
	}
	lower := strings.ToLower(password)
	for _, p := range x.Patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
