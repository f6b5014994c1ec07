package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"passfuse/internal/candidate"
	"passfuse/internal/identity"
	"passfuse/internal/logging"
	"passfuse/internal/services"
)

// Generator produces a fresh ranked stream for one identity. Implementations
// must not retain the stream's state across calls and must honor ctx.
type Generator interface {
	Name() string
	Required() []identity.Field
	Generate(ctx context.Context, rec identity.Record) (candidate.Stream, error)
}

// MissingPolicy decides what happens when a record lacks a required field.
type MissingPolicy string

const (
	// MissingSkip substitutes an empty stream and records an informational diagnostic.
	MissingSkip MissingPolicy = "skip"
	// MissingFail raises ErrMissingAttribute for the pair.
	MissingFail MissingPolicy = "fail"
)

// ParseMissingPolicy accepts "skip" and "fail"; empty means skip.
func ParseMissingPolicy(value string) (MissingPolicy, error) {
	switch MissingPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", MissingSkip:
		return MissingSkip, nil
	case MissingFail:
		return MissingFail, nil
	default:
		return "", fmt.Errorf("unknown missing policy %q (want skip or fail)", value)
	}
}

// ErrSkipped tags a missing-attribute error raised under MissingSkip.
var ErrSkipped = errors.New("generator skipped")

// Spec is the adapter configuration of one generator.
type Spec struct {
	Name     string
	Priority float64
	// Required overrides the generator's own required fields when non-nil.
	Required []identity.Field
	Missing  MissingPolicy
	Timeout  time.Duration
}

// Adapter wraps a Generator. It is safe for concurrent use by many identities.
type Adapter struct {
	spec   Spec
	gen    Generator
	logger *slog.Logger
}

// NewAdapter validates spec and binds it to gen.
func NewAdapter(spec Spec, gen Generator, logger *slog.Logger) (*Adapter, error) {
	if gen == nil {
		return nil, services.Wrap(services.ErrConfiguration, "generator", "adapter", "generator is nil", nil)
	}
	if strings.TrimSpace(spec.Name) == "" {
		spec.Name = gen.Name()
	}
	if !(spec.Priority > 0) || math.IsInf(spec.Priority, 0) {
		return nil, services.Wrap(services.ErrConfiguration, "generator", spec.Name,
			fmt.Sprintf("priority must be positive (got %g)", spec.Priority), nil)
	}
	if spec.Missing == "" {
		spec.Missing = MissingSkip
	}
	if spec.Missing != MissingSkip && spec.Missing != MissingFail {
		return nil, services.Wrap(services.ErrConfiguration, "generator", spec.Name,
			fmt.Sprintf("unknown missing policy %q", spec.Missing), nil)
	}
	if spec.Timeout < 0 {
		return nil, services.Wrap(services.ErrConfiguration, "generator", spec.Name, "timeout must not be negative", nil)
	}
	if spec.Required == nil {
		spec.Required = gen.Required()
	}
	spec.Required = append([]identity.Field(nil), spec.Required...)
	return &Adapter{
		spec:   spec,
		gen:    gen,
		logger: logging.NewComponentLogger(logger, "generator").With(logging.String(logging.FieldGenerator, spec.Name)),
	}, nil
}

// Name returns the configured generator name.
func (a *Adapter) Name() string { return a.spec.Name }

// Priority returns the fusion weight.
func (a *Adapter) Priority() float64 { return a.spec.Priority }

// Spec returns a copy of the adapter configuration.
func (a *Adapter) Spec() Spec {
	spec := a.spec
	spec.Required = append([]identity.Field(nil), a.spec.Required...)
	return spec
}

// Open starts the generator for rec. The returned stream is never nil: on any
// error it is empty and the error carries ErrMissingAttribute (optionally with
// ErrSkipped) or ErrGeneratorUnavailable.
func (a *Adapter) Open(ctx context.Context, rec identity.Record) (candidate.Stream, error) {
	if missing := rec.Missing(a.spec.Required); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		err := services.Wrap(services.ErrMissingAttribute, "generate", a.spec.Name,
			"record lacks "+strings.Join(names, ", "), nil)
		if a.spec.Missing == MissingSkip {
			err = fmt.Errorf("%w: %w", ErrSkipped, err)
		}
		return candidate.Empty(), err
	}

	var (
		genCtx context.Context
		cancel context.CancelFunc
	)
	if a.spec.Timeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, a.spec.Timeout)
	} else {
		genCtx, cancel = context.WithCancel(ctx)
	}
	genCtx = services.WithGenerator(genCtx, a.spec.Name)

	started := time.Now()
	inner, err := a.generate(genCtx, rec)
	if err != nil {
		err = a.unavailable(genCtx, "generate", err)
		cancel()
		logging.WarnWithContext(logging.WithContext(ctx, a.logger), "generator unavailable", services.KindGeneratorUnavailable,
			logging.String(logging.FieldIdentity, rec.Key()),
			logging.Error(err),
			logging.Duration("elapsed", time.Since(started)),
		)
		return candidate.Empty(), err
	}
	if inner == nil {
		inner = candidate.Empty()
	}
	return &guardedStream{adapter: a, ctx: genCtx, cancel: cancel, inner: inner}, nil
}

func (a *Adapter) generate(ctx context.Context, rec identity.Record) (stream candidate.Stream, err error) {
	defer func() {
		if r := recover(); r != nil {
			stream = nil
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	return a.gen.Generate(ctx, rec)
}

func (a *Adapter) unavailable(ctx context.Context, op string, err error) error {
	if errors.Is(err, services.ErrGeneratorUnavailable) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", services.ErrTimeout, a.spec.Timeout, err)
	}
	return services.Wrap(services.ErrGeneratorUnavailable, op, a.spec.Name, "", err)
}

// guardedStream enforces the adapter's timeout and recovers panics raised by
// the wrapped stream.
type guardedStream struct {
	adapter *Adapter
	ctx     context.Context
	cancel  context.CancelFunc
	inner   candidate.Stream

	closeOnce sync.Once
	closeErr  error
}

func (s *guardedStream) Next(ctx context.Context) (c candidate.Candidate, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return candidate.Candidate{}, false, err
	}
	if s.ctx.Err() != nil {
		return candidate.Candidate{}, false, s.adapter.unavailable(s.ctx, "stream", s.ctx.Err())
	}
	// Cancelling the consumer's context tears down the generator's own work.
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer func() {
		if r := recover(); r != nil {
			c, ok = candidate.Candidate{}, false
			err = s.adapter.unavailable(s.ctx, "stream", fmt.Errorf("stream panic: %v", r))
		}
	}()
	c, ok, err = s.inner.Next(s.ctx)
	if err != nil {
		if ctx.Err() != nil {
			return candidate.Candidate{}, false, ctx.Err()
		}
		return candidate.Candidate{}, false, s.adapter.unavailable(s.ctx, "stream", err)
	}
	if ok {
		c.Source = s.adapter.spec.Name
	}
	return c, ok, nil
}

func (s *guardedStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		defer func() {
			if r := recover(); r != nil {
				s.closeErr = fmt.Errorf("close panic: %v", r)
			}
		}()
		s.closeErr = s.inner.Close()
	})
	return s.closeErr
}
