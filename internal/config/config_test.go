package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"passfuse/internal/config"
	"passfuse/internal/services"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "passfuse", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if want := filepath.Join(tempHome, ".local", "share", "passfuse", "output"); cfg.Paths.OutputDir != want {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, want)
	}
	if cfg.StorePath() != filepath.Join(tempHome, ".local", "share", "passfuse", "passfuse.db") {
		t.Fatalf("unexpected store path %q", cfg.StorePath())
	}
	if cfg.Budget.K != 10000 || cfg.Budget.Overfetch != 2 || cfg.Budget.Fairness != 1 {
		t.Fatalf("unexpected budget defaults: %+v", cfg.Budget)
	}
	if cfg.Pipeline.Workers != runtime.NumCPU() {
		t.Fatalf("expected workers to default to NumCPU, got %d", cfg.Pipeline.Workers)
	}
	if len(cfg.Generators) != 1 || cfg.Generators[0].Type != config.TypePII {
		t.Fatalf("expected built-in pii generator, got %+v", cfg.Generators)
	}
	if cfg.Generators[0].TimeoutSeconds != cfg.Pipeline.DefaultTimeoutSeconds {
		t.Fatalf("expected generator timeout to inherit default, got %d", cfg.Generators[0].TimeoutSeconds)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "passfuse.toml")

	type generator struct {
		Name     string  `toml:"name"`
		Type     string  `toml:"type"`
		Priority float64 `toml:"priority"`
		Path     string  `toml:"path"`
		Missing  string  `toml:"missing"`
	}
	type payload struct {
		Budget struct {
			K int `toml:"k"`
		} `toml:"budget"`
		Generators []generator `toml:"generators"`
	}
	custom := payload{Generators: []generator{
		{Name: "guesses", Type: "FILE", Priority: 2, Path: filepath.Join(tempDir, "answers.txt"), Missing: " Fail "},
		{Name: "rules", Type: "pii", Priority: 1},
	}}
	custom.Budget.K = 50
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Budget.K != 50 {
		t.Fatalf("expected k=50, got %d", cfg.Budget.K)
	}
	if got := cfg.Generators[0]; got.Type != config.TypeFile || got.Missing != "fail" {
		t.Fatalf("expected normalized type/missing, got %+v", got)
	}
	priorities := cfg.Priorities()
	if priorities["guesses"] != 2 || priorities["rules"] != 1 {
		t.Fatalf("unexpected priorities %v", priorities)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[budget]\nkay = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := config.Load(path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSampleConfigIsValid(t *testing.T) {
	cfg, err := config.Parse([]byte(config.SampleConfig()))
	if err != nil {
		t.Fatalf("sample config invalid: %v", err)
	}
	if len(cfg.EnabledGenerators()) != 1 {
		t.Fatalf("expected one enabled generator in sample, got %d", len(cfg.EnabledGenerators()))
	}
	if len(cfg.Generators) != 4 {
		t.Fatalf("expected four sample generators, got %d", len(cfg.Generators))
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[[generators]]") {
		t.Fatal("sample config missing generators section")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"zero budget", "[budget]\nk = 0\n", "budget.k"},
		{"overfetch below one", "[budget]\noverfetch = 0.5\n", "budget.overfetch"},
		{"fairness above one", "[budget]\nfairness = 1.5\n", "budget.fairness"},
		{"max entries below target", "[budget]\nk = 10\nmax_entries = 5\n", "budget.max_entries"},
		{"inverted bounds", "[strength]\nmin = 30.0\nmax = 10.0\n", "strength.max"},
		{"blank exclude pattern", "[strength]\nexclude_patterns = [\"1314\", \" \"]\n", "strength.exclude_patterns[1]"},
		{"unknown type", "[[generators]]\nname = \"x\"\ntype = \"magic\"\npriority = 1.0\n", "not one of"},
		{"missing path", "[[generators]]\nname = \"x\"\ntype = \"file\"\npriority = 1.0\n", ".path is required"},
		{"missing command", "[[generators]]\nname = \"x\"\ntype = \"command\"\npriority = 1.0\n", ".command is required"},
		{"bad url", "[[generators]]\nname = \"x\"\ntype = \"http\"\npriority = 1.0\nurl = \"ftp://host\"\n", "http(s) URL"},
		{"duplicate names", "[[generators]]\nname = \"x\"\ntype = \"pii\"\npriority = 1.0\n[[generators]]\nname = \"x\"\ntype = \"pii\"\npriority = 1.0\n", "duplicate"},
		{"zero weights", "[[generators]]\nname = \"x\"\ntype = \"pii\"\npriority = 0.0\n", "sum to zero"},
		{"bad policy", "[[generators]]\nname = \"x\"\ntype = \"pii\"\npriority = 1.0\nmissing = \"maybe\"\n", "missing must be"},
		{"all disabled", "[[generators]]\nname = \"x\"\ntype = \"pii\"\npriority = 1.0\nenabled = false\n", "at least one enabled"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.toml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestParseExclusionFilter(t *testing.T) {
	cfg, err := config.Parse([]byte("[strength]\nascii_only = true\nexclude_patterns = [\"woaini\", \"1314\"]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Strength.ASCIIOnly {
		t.Fatal("expected ascii_only to be set")
	}
	if got := strings.Join(cfg.Strength.ExcludePatterns, ","); got != "woaini,1314" {
		t.Fatalf("unexpected exclude patterns %q", got)
	}
}

func TestHTTPGeneratorAPIKeyFromEnv(t *testing.T) {
	t.Setenv("PASSFUSE_HTTP_API_KEY", " secret ")
	cfg, err := config.Parse([]byte("[[generators]]\nname = \"svc\"\ntype = \"http\"\npriority = 1.0\nurl = \"http://localhost:9/gen\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Generators[0].APIKey != "secret" {
		t.Fatalf("expected api key from env, got %q", cfg.Generators[0].APIKey)
	}
}

func TestGeneratorEnabledDefault(t *testing.T) {
	var g config.Generator
	if !g.IsEnabled() {
		t.Fatal("expected generators to be enabled by default")
	}
	off := false
	g.Enabled = &off
	if g.IsEnabled() {
		t.Fatal("expected explicit enabled=false to disable")
	}
}
