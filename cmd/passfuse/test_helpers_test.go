package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"passfuse/internal/config"
	"passfuse/internal/testsupport"
)

const testGuesses = "alpha\nbravo\n<END>\ncharlie\n"

type cliTestEnv struct {
	cfg         *config.Config
	configPath  string
	targetsPath string
	baseDir     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithGenerators(),
		testsupport.WithAnswerFile("guesses", 1, testGuesses),
	)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "passfuse", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:         cfg,
		configPath:  configPath,
		targetsPath: testsupport.WriteTargets(t, base, "id:u1\tname:Jane Doe", "id:u2\tname:John Roe"),
		baseDir:     base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\noutput_dir = %q\nlog_dir = %q\nstate_dir = %q\n\n",
		cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.StateDir)
	fmt.Fprintf(&b, "[budget]\nk = %d\n\n", cfg.Budget.K)
	fmt.Fprintf(&b, "[pipeline]\nworkers = %d\n\n", cfg.Pipeline.Workers)
	b.WriteString("[logging]\nlevel = \"error\"\n")
	for _, g := range cfg.Generators {
		fmt.Fprintf(&b, "\n[[generators]]\nname = %q\ntype = %q\npriority = %g\nmissing = %q\n",
			g.Name, g.Type, g.Priority, g.Missing)
		if g.Path != "" {
			fmt.Fprintf(&b, "path = %q\n", g.Path)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
