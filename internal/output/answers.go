package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"passfuse/internal/candidate"
)

// AnswerWriter writes the "<END>"-segmented answer format. Passwords that
// cannot be represented on a single line are skipped and counted.
type AnswerWriter struct {
	w       *bufio.Writer
	blocks  int
	skipped int
}

// NewAnswerWriter wraps w.
func NewAnswerWriter(w io.Writer) *AnswerWriter {
	return &AnswerWriter{w: bufio.NewWriter(w)}
}

// WriteBlock appends the passwords of the next identity.
func (a *AnswerWriter) WriteBlock(passwords []string) error {
	if a.blocks > 0 {
		if _, err := a.w.WriteString(candidate.SegmentSeparator + "\n"); err != nil {
			return fmt.Errorf("write answers: %w", err)
		}
	}
	a.blocks++
	for _, pw := range passwords {
		if !representable(pw) {
			a.skipped++
			continue
		}
		if _, err := a.w.WriteString(pw + "\n"); err != nil {
			return fmt.Errorf("write answers: %w", err)
		}
	}
	return nil
}

// Skipped returns how many passwords were left out.
func (a *AnswerWriter) Skipped() int { return a.skipped }

// Flush writes buffered data.
func (a *AnswerWriter) Flush() error {
	if err := a.w.Flush(); err != nil {
		return fmt.Errorf("flush answers: %w", err)
	}
	return nil
}

func representable(pw string) bool {
	return pw != "" && !strings.ContainsAny(pw, "\r\n") && strings.TrimSpace(pw) != candidate.SegmentSeparator
}

// WriteAnswers writes one block per identity. No separator follows the last
// block.
func WriteAnswers(w io.Writer, blocks [][]string) error {
	aw := NewAnswerWriter(w)
	for _, block := range blocks {
		if err := aw.WriteBlock(block); err != nil {
			return err
		}
	}
	return aw.Flush()
}

// ReadAnswers splits an answer document into per-identity password blocks.
// A trailing separator does not start an extra block.
func ReadAnswers(r io.Reader) ([][]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var (
		blocks  [][]string
		current []string
		open    bool
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == candidate.SegmentSeparator {
			blocks = append(blocks, current)
			current, open = nil, false
			continue
		}
		open = true
		if strings.TrimSpace(line) == "" {
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	if open {
		blocks = append(blocks, current)
	}
	return blocks, nil
}
