package generator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passfuse/internal/candidate"
	"passfuse/internal/generator"
	"passfuse/internal/identity"
	"passfuse/internal/logging"
	"passfuse/internal/services"
)

type fakeGenerator struct {
	name     string
	required []identity.Field
	generate func(ctx context.Context, rec identity.Record) (candidate.Stream, error)
	calls    int
}

func (f *fakeGenerator) Name() string               { return f.name }
func (f *fakeGenerator) Required() []identity.Field { return f.required }
func (f *fakeGenerator) Generate(ctx context.Context, rec identity.Record) (candidate.Stream, error) {
	f.calls++
	return f.generate(ctx, rec)
}

func staticGenerator(name string, passwords ...string) *fakeGenerator {
	return &fakeGenerator{name: name, generate: func(context.Context, identity.Record) (candidate.Stream, error) {
		return candidate.FromSlice(name, passwords), nil
	}}
}

// blockingStream yields nothing until its context ends.
type blockingStream struct{ closed int }

func (b *blockingStream) Next(ctx context.Context) (candidate.Candidate, bool, error) {
	<-ctx.Done()
	return candidate.Candidate{}, false, ctx.Err()
}

func (b *blockingStream) Close() error { b.closed++; return nil }

type panicStream struct{}

func (panicStream) Next(context.Context) (candidate.Candidate, bool, error) { panic("boom") }
func (panicStream) Close() error                                           { return nil }

func janeDoe(t *testing.T) identity.Record {
	t.Helper()
	rec, err := identity.ParseLine("name:Jane Doe\tbirth:19900501\temail:jane.doe@example.com", 1)
	require.NoError(t, err)
	return rec
}

func drain(t *testing.T, s candidate.Stream) []candidate.Candidate {
	t.Helper()
	var out []candidate.Candidate
	for {
		c, ok, err := s.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func newAdapter(t *testing.T, spec generator.Spec, gen generator.Generator) *generator.Adapter {
	t.Helper()
	if spec.Priority == 0 {
		spec.Priority = 1
	}
	a, err := generator.NewAdapter(spec, gen, logging.NewNop())
	require.NoError(t, err)
	return a
}

func TestAdapterStreamsUnderConfiguredName(t *testing.T) {
	a := newAdapter(t, generator.Spec{Name: "rules"}, staticGenerator("inner", "janedoe1990", "jane1990!"))

	s, err := a.Open(context.Background(), janeDoe(t))
	require.NoError(t, err)
	got := drain(t, s)
	require.Len(t, got, 2)
	assert.Equal(t, "rules", got[0].Source)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "jane1990!", got[1].Password)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestAdapterDefaultsNameAndRequired(t *testing.T) {
	gen := staticGenerator("model")
	gen.required = []identity.Field{identity.FieldName}
	a := newAdapter(t, generator.Spec{}, gen)

	assert.Equal(t, "model", a.Name())
	assert.Equal(t, []identity.Field{identity.FieldName}, a.Spec().Required)
	assert.Equal(t, generator.MissingSkip, a.Spec().Missing)
}

func TestAdapterMissingAttributeSkip(t *testing.T) {
	gen := staticGenerator("model", "x")
	a := newAdapter(t, generator.Spec{Name: "model", Required: []identity.Field{identity.FieldPhone}}, gen)

	s, err := a.Open(context.Background(), janeDoe(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, generator.ErrSkipped)
	assert.ErrorIs(t, err, services.ErrMissingAttribute)
	assert.Equal(t, services.KindMissingAttribute, services.Kind(err))
	assert.Contains(t, err.Error(), "phone")
	assert.Empty(t, drain(t, s))
	assert.Zero(t, gen.calls)
}

func TestAdapterMissingAttributeFail(t *testing.T) {
	a := newAdapter(t, generator.Spec{
		Name:     "model",
		Required: []identity.Field{identity.FieldAccount, identity.FieldPhone},
		Missing:  generator.MissingFail,
	}, staticGenerator("model", "x"))

	s, err := a.Open(context.Background(), janeDoe(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrMissingAttribute)
	assert.False(t, errors.Is(err, generator.ErrSkipped))
	assert.Contains(t, err.Error(), "account, phone")
	assert.Empty(t, drain(t, s))
}

func TestAdapterGenerateFailureIsUnavailable(t *testing.T) {
	boom := errors.New("model offline")
	gen := &fakeGenerator{name: "model", generate: func(context.Context, identity.Record) (candidate.Stream, error) {
		return nil, boom
	}}
	a := newAdapter(t, generator.Spec{Name: "model"}, gen)

	s, err := a.Open(context.Background(), janeDoe(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrGeneratorUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, services.KindGeneratorUnavailable, services.Kind(err))
	require.NotNil(t, s)
	assert.Empty(t, drain(t, s))
}

func TestAdapterRecoversGeneratePanic(t *testing.T) {
	gen := &fakeGenerator{name: "model", generate: func(context.Context, identity.Record) (candidate.Stream, error) {
		panic("nil map")
	}}
	a := newAdapter(t, generator.Spec{Name: "model"}, gen)

	s, err := a.Open(context.Background(), janeDoe(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrGeneratorUnavailable)
	assert.Contains(t, err.Error(), "nil map")
	assert.Empty(t, drain(t, s))
}

func TestAdapterRecoversStreamPanic(t *testing.T) {
	gen := &fakeGenerator{name: "model", generate: func(context.Context, identity.Record) (candidate.Stream, error) {
		return panicStream{}, nil
	}}
	a := newAdapter(t, generator.Spec{Name: "model"}, gen)

	s, err := a.Open(context.Background(), janeDoe(t))
	require.NoError(t, err)
	_, ok, err := s.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, services.ErrGeneratorUnavailable)
	assert.Contains(t, err.Error(), "boom")
}

func TestAdapterTimeout(t *testing.T) {
	inner := &blockingStream{}
	gen := &fakeGenerator{name: "model", generate: func(context.Context, identity.Record) (candidate.Stream, error) {
		return inner, nil
	}}
	a := newAdapter(t, generator.Spec{Name: "model", Timeout: 20 * time.Millisecond}, gen)

	s, err := a.Open(context.Background(), janeDoe(t))
	require.NoError(t, err)
	_, ok, err := s.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, services.ErrTimeout)
	assert.ErrorIs(t, err, services.ErrGeneratorUnavailable)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, inner.closed)
}

func TestAdapterConsumerCancellation(t *testing.T) {
	gen := &fakeGenerator{name: "model", generate: func(context.Context, identity.Record) (candidate.Stream, error) {
		return &blockingStream{}, nil
	}}
	a := newAdapter(t, generator.Spec{Name: "model"}, gen)

	s, err := a.Open(context.Background(), janeDoe(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := s.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, services.ErrGeneratorUnavailable))
}

func TestNewAdapterValidation(t *testing.T) {
	gen := staticGenerator("model")
	tests := []struct {
		name string
		spec generator.Spec
		gen  generator.Generator
	}{
		{"nil generator", generator.Spec{Name: "x", Priority: 1}, nil},
		{"zero priority", generator.Spec{Name: "x"}, gen},
		{"negative priority", generator.Spec{Name: "x", Priority: -1}, gen},
		{"bad policy", generator.Spec{Name: "x", Priority: 1, Missing: "ignore"}, gen},
		{"negative timeout", generator.Spec{Name: "x", Priority: 1, Timeout: -time.Second}, gen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generator.NewAdapter(tt.spec, tt.gen, logging.NewNop())
			require.Error(t, err)
			assert.ErrorIs(t, err, services.ErrConfiguration)
		})
	}
}

func TestParseMissingPolicy(t *testing.T) {
	p, err := generator.ParseMissingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, generator.MissingSkip, p)

	p, err = generator.ParseMissingPolicy(" FAIL ")
	require.NoError(t, err)
	assert.Equal(t, generator.MissingFail, p)

	_, err = generator.ParseMissingPolicy("drop")
	assert.Error(t, err)
}
