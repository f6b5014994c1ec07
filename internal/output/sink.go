package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"passfuse/internal/pipeline"
)

// Artifact file names inside a run directory.
const (
	TSVFileName     = "candidates.tsv"
	AnswersFileName = "answers.txt"
)

// Sink writes pipeline results to the run artifacts as they arrive.
type Sink struct {
	tsvFile     *os.File
	tsv         *TSVWriter
	answersFile *os.File
	answers     *AnswerWriter
}

// Create opens the artifacts in dir. The answer file is only written when
// answers is true.
func Create(dir string, answers bool) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	tsvFile, err := os.Create(filepath.Join(dir, TSVFileName))
	if err != nil {
		return nil, fmt.Errorf("create tsv artifact: %w", err)
	}
	s := &Sink{tsvFile: tsvFile, tsv: NewTSVWriter(tsvFile)}
	if answers {
		answersFile, err := os.Create(filepath.Join(dir, AnswersFileName))
		if err != nil {
			_ = tsvFile.Close()
			return nil, fmt.Errorf("create answer artifact: %w", err)
		}
		s.answersFile = answersFile
		s.answers = NewAnswerWriter(answersFile)
	}
	return s, nil
}

// Write implements pipeline.Sink.
func (s *Sink) Write(_ context.Context, res pipeline.Result) error {
	if err := s.tsv.WriteRows(Rows(res)); err != nil {
		return err
	}
	if s.answers != nil {
		return s.answers.WriteBlock(res.Output.Passwords())
	}
	return nil
}

// SkippedAnswers returns the passwords left out of the answer file.
func (s *Sink) SkippedAnswers() int {
	if s.answers == nil {
		return 0
	}
	return s.answers.Skipped()
}

// Close flushes and closes every artifact.
func (s *Sink) Close() error {
	var errs []error
	errs = append(errs, s.tsv.Flush(), s.tsvFile.Close())
	if s.answers != nil {
		errs = append(errs, s.answers.Flush(), s.answersFile.Close())
	}
	return errors.Join(errs...)
}
