package pipeline

import (
	"context"
	"time"

	"passfuse/internal/fusion"
	"passfuse/internal/identity"
	"passfuse/internal/selector"
)

// Status is the outcome of one identity.
type Status string

const (
	StatusOK    Status = "ok"
	StatusEmpty Status = "empty"
)

// Severity grades a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic records one non-fatal problem. Generator is empty for
// identity-level diagnostics.
type Diagnostic struct {
	Identity  string   `json:"identity"`
	Generator string   `json:"generator,omitempty"`
	Kind      string   `json:"kind"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// Result is the processed outcome of one identity.
type Result struct {
	Identity identity.Record
	// Index is the 0-based position of the identity in the input.
	Index       int
	Output      selector.Output
	Sources     map[string]fusion.SourceStats
	Diagnostics []Diagnostic
	Status      Status
	Duration    time.Duration
}

// Sink receives results in input order. Write is never called concurrently.
type Sink interface {
	Write(ctx context.Context, res Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res Result) error

func (f SinkFunc) Write(ctx context.Context, res Result) error { return f(ctx, res) }

// Summary aggregates a run.
type Summary struct {
	Identities  int            `json:"identities"`
	Statuses    map[Status]int `json:"statuses"`
	Selected    int            `json:"selected"`
	Diagnostics []Diagnostic   `json:"diagnostics"`
}

// Count returns the number of identities that ended with status.
func (s Summary) Count(status Status) int { return s.Statuses[status] }

func (s *Summary) add(res Result) {
	if s.Statuses == nil {
		s.Statuses = make(map[Status]int)
	}
	s.Identities++
	s.Statuses[res.Status]++
	s.Selected += len(res.Output.Selections)
	s.Diagnostics = append(s.Diagnostics, res.Diagnostics...)
}

// Tee writes every result to each sink in turn, stopping at the first error.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, res Result) error {
		for _, s := range sinks {
			if err := s.Write(ctx, res); err != nil {
				return err
			}
		}
		return nil
	})
}
