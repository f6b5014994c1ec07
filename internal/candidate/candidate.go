package candidate

import (
	"context"
	"sync"
)

// Candidate is one proposed password from one generator.
type Candidate struct {
	Password string
	Source   string
	// Rank is the 1-based position in the generator's own emission order.
	Rank int
	// Score is the generator-reported probability, valid when HasScore is true.
	// It is informational: fusion ranks by Rank only and Score is not persisted.
	Score    float64
	HasScore bool
}

// Stream is a lazy, finite sequence of candidates ordered best first.
type Stream interface {
	// Next returns the next candidate. ok is false once the stream is exhausted.
	// A non-nil error ends the stream and marks the generator unavailable for
	// the identity, so fusion discards the candidates it already returned.
	Next(ctx context.Context) (c Candidate, ok bool, err error)
	Close() error
}

// Empty returns a stream that is already exhausted.
func Empty() Stream { return emptyStream{} }

type emptyStream struct{}

func (emptyStream) Next(context.Context) (Candidate, bool, error) { return Candidate{}, false, nil }
func (emptyStream) Close() error                                  { return nil }

// FromSlice streams passwords in slice order, assigning ranks 1..n.
func FromSlice(source string, passwords []string) Stream {
	return &sliceStream{source: source, passwords: passwords}
}

type sliceStream struct {
	source    string
	passwords []string
	pos       int
}

func (s *sliceStream) Next(ctx context.Context) (Candidate, bool, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, false, err
	}
	if s.pos >= len(s.passwords) {
		return Candidate{}, false, nil
	}
	s.pos++
	return Candidate{Password: s.passwords[s.pos-1], Source: s.source, Rank: s.pos}, true, nil
}

func (s *sliceStream) Close() error { return nil }

// LineFunc parses one producer line into a password and optional score.
// ok=false skips the line without consuming a rank.
type LineFunc func(line string) (password string, score float64, hasScore bool, ok bool)

// Ranked wraps a raw line iterator and assigns ranks in emission order. It is
// the common tail of file, process and HTTP backed streams.
type Ranked struct {
	source string
	next   func() (string, bool, error)
	parse  LineFunc
	close  func() error

	rank      int
	closeOnce sync.Once
	closeErr  error
}

// NewRanked builds a Ranked stream. next yields raw lines; close may be nil.
func NewRanked(source string, next func() (string, bool, error), parse LineFunc, close func() error) *Ranked {
	return &Ranked{source: source, next: next, parse: parse, close: close}
}

// Next implements Stream.
func (r *Ranked) Next(ctx context.Context) (Candidate, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Candidate{}, false, err
		}
		line, ok, err := r.next()
		if err != nil {
			return Candidate{}, false, err
		}
		if !ok {
			return Candidate{}, false, nil
		}
		password, score, hasScore, keep := r.parse(line)
		if !keep {
			continue
		}
		r.rank++
		return Candidate{Password: password, Source: r.source, Rank: r.rank, Score: score, HasScore: hasScore}, true, nil
	}
}

// Close implements Stream; repeated calls return the first result.
func (r *Ranked) Close() error {
	r.closeOnce.Do(func() {
		if r.close != nil {
			r.closeErr = r.close()
		}
	})
	return r.closeErr
}
