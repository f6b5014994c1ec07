package generator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passfuse/internal/config"
	"passfuse/internal/generator"
	"passfuse/internal/identity"
	"passfuse/internal/logging"
	"passfuse/internal/services"
)

func TestBuildFromConfig(t *testing.T) {
	answers := writeAnswers(t, "janedoe1990\n")
	disabled := false
	cfg := config.Default()
	cfg.Generators = []config.Generator{
		{Name: "rules", Type: config.TypePII, Priority: 1.5},
		{Name: "model", Type: config.TypeFile, Priority: 1, Path: answers, Required: []string{"Name"}, Missing: "fail", TimeoutSeconds: 30},
		{Name: "remote", Type: config.TypeHTTP, Priority: 1, URL: "http://127.0.0.1:9/generate", Enabled: &disabled},
	}

	adapters, err := generator.Build(&cfg, logging.NewNop())
	require.NoError(t, err)
	require.Len(t, adapters, 2)

	assert.Equal(t, "rules", adapters[0].Name())
	assert.InDelta(t, 1.5, adapters[0].Priority(), 1e-9)

	spec := adapters[1].Spec()
	assert.Equal(t, "model", spec.Name)
	assert.Equal(t, []identity.Field{identity.FieldName}, spec.Required)
	assert.Equal(t, generator.MissingFail, spec.Missing)
	assert.Equal(t, 30*time.Second, spec.Timeout)

	s, err := adapters[1].Open(context.Background(), janeDoe(t))
	require.NoError(t, err)
	got := drain(t, s)
	require.Len(t, got, 1)
	assert.Equal(t, "model", got[0].Source)
}

func TestBuildReportsEveryBrokenGenerator(t *testing.T) {
	cfg := config.Default()
	cfg.Generators = []config.Generator{
		{Name: "model", Type: config.TypeFile, Priority: 1, Path: filepath.Join(t.TempDir(), "missing.txt")},
		{Name: "wrapper", Type: config.TypeCommand, Priority: 1, Command: filepath.Join(t.TempDir(), "no-such-binary")},
		{Name: "odd", Type: "markov", Priority: 1},
	}
	_, err := generator.Build(&cfg, logging.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
	for _, name := range []string{"model", "wrapper", "odd"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestBuildLoadsRuleSetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_candidates: 2\n"), 0o600))
	cfg := config.Default()
	cfg.Generators = []config.Generator{{Name: "rules", Type: config.TypePII, Priority: 1, RuleSet: path}}

	adapters, err := generator.Build(&cfg, logging.NewNop())
	require.NoError(t, err)
	s, err := adapters[0].Open(context.Background(), janeDoe(t))
	require.NoError(t, err)
	assert.Len(t, drain(t, s), 2)
}

func TestBuildNilConfig(t *testing.T) {
	_, err := generator.Build(nil, logging.NewNop())
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
