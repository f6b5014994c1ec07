package candidate

import (
	"strconv"
	"strings"
)

// ParseLine parses "password" or "password<TAB>score" lines as written by
// guess files and model wrappers. Trailing carriage returns are dropped, inline
// " #" comments are stripped, blank lines and the "<END>" separator are skipped.
// Passwords keep their inner whitespace; a non-numeric score field is ignored.
func ParseLine(line string) (string, float64, bool, bool) {
	line = strings.TrimRight(line, "\r\n")
	if idx := strings.Index(line, " #"); idx >= 0 {
		line = line[:idx]
	}
	if strings.TrimSpace(line) == "" || strings.TrimSpace(line) == SegmentSeparator {
		return "", 0, false, false
	}
	password, rest, hasTab := strings.Cut(line, "\t")
	if password == "" {
		return "", 0, false, false
	}
	if !hasTab {
		return password, 0, false, true
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return password, 0, false, true
	}
	return password, score, true, true
}

// SegmentSeparator separates per-identity blocks in answer files.
const SegmentSeparator = "<END>"
