package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"passfuse/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It has a single pii generator unless options replace it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths = config.Paths{
		OutputDir: filepath.Join(base, "output"),
		LogDir:    filepath.Join(base, "logs"),
		StateDir:  filepath.Join(base, "state"),
	}
	cfgVal.Budget.K = 20
	cfgVal.Pipeline.Workers = 2
	cfgVal.Generators = []config.Generator{config.DefaultGenerator()}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithBudget overrides the per-identity budget K.
func WithBudget(k int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Budget.K = k
	}
}

// WithGenerators replaces the generator list.
func WithGenerators(generators ...config.Generator) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generators = generators
	}
}

// WithAnswerFile adds a file generator serving content, written under the
// config's base directory.
func WithAnswerFile(name string, priority float64, content string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, name+".answers")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			b.t.Fatalf("write answer file %s: %v", name, err)
		}
		b.cfg.Generators = append(b.cfg.Generators, config.Generator{
			Name:           name,
			Type:           config.TypeFile,
			Priority:       priority,
			Path:           path,
			Missing:        "skip",
			TimeoutSeconds: 10,
		})
	}
}

// WithStubbedCommand writes an executable shell script and registers it as a
// command generator.
func WithStubbedCommand(name string, priority float64, script string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
			b.t.Fatalf("write stub %s: %v", name, err)
		}
		b.cfg.Generators = append(b.cfg.Generators, config.Generator{
			Name:           name,
			Type:           config.TypeCommand,
			Priority:       priority,
			Command:        target,
			Missing:        "skip",
			TimeoutSeconds: 10,
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
