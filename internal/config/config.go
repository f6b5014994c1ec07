package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Generator types understood by the generator factory.
const (
	TypeFile    = "file"
	TypeCommand = "command"
	TypeHTTP    = "http"
	TypePII     = "pii"
)

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Budget controls fusion and selection for one identity.
type Budget struct {
	K            int     `toml:"k"`
	Overfetch    float64 `toml:"overfetch"`
	Fairness     float64 `toml:"fairness"`
	MinWindow    int     `toml:"min_window"`
	BatchSize    int     `toml:"batch_size"`
	MaxPerSource int     `toml:"max_per_source"`
	MaxEntries   int     `toml:"max_entries"`
}

// Strength holds the accepted score interval (zxcvbn entropy bits) and the
// exclusion filter applied before truncation.
type Strength struct {
	Min             float64  `toml:"min"`
	Max             float64  `toml:"max"`
	ASCIIOnly       bool     `toml:"ascii_only"`
	ExcludePatterns []string `toml:"exclude_patterns"`
}

// Pipeline contains orchestrator settings.
type Pipeline struct {
	Workers               int `toml:"workers"`
	DefaultTimeoutSeconds int `toml:"default_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics configures the optional node-exporter textfile.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Generator describes one candidate generator.
type Generator struct {
	Name           string   `toml:"name"`
	Type           string   `toml:"type"`
	Priority       float64  `toml:"priority"`
	Required       []string `toml:"required"`
	Missing        string   `toml:"missing"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Enabled        *bool    `toml:"enabled"`

	// file
	Path string `toml:"path"`
	// command
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	// http
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
	// pii
	RuleSet string `toml:"rule_set"`

	TopN                int     `toml:"top_n"`
	SamplingTemperature float64 `toml:"sampling_temperature"`
}

// IsEnabled reports whether the generator takes part in runs; unset means yes.
func (g Generator) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// Timeout returns the per-call generator timeout.
func (g Generator) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Config encapsulates all configuration values for passfuse.
//
// Configuration sections:
//   - Paths: output artifacts, logs and the run store
//   - Budget: per-identity K and fusion/selection tuning
//   - Strength: accepted score bounds
//   - Pipeline: worker count and default generator timeout
//   - Logging: log format and level
//   - Metrics: optional prometheus textfile
//   - Generators: the candidate sources and their priorities
type Config struct {
	Paths      Paths       `toml:"paths"`
	Budget     Budget      `toml:"budget"`
	Strength   Strength    `toml:"strength"`
	Pipeline   Pipeline    `toml:"pipeline"`
	Logging    Logging     `toml:"logging"`
	Metrics    Metrics     `toml:"metrics"`
	Generators []Generator `toml:"generators"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/passfuse/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, configError("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Parse decodes, normalizes and validates TOML held in memory.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, configError("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/passfuse/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("passfuse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the SQLite run store location.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.StateDir, "passfuse.db")
}

// EnabledGenerators returns the generators that take part in runs.
func (c *Config) EnabledGenerators() []Generator {
	out := make([]Generator, 0, len(c.Generators))
	for _, g := range c.Generators {
		if g.IsEnabled() {
			out = append(out, g)
		}
	}
	return out
}

// Priorities maps enabled generator names to their fusion weight.
func (c *Config) Priorities() map[string]float64 {
	out := make(map[string]float64, len(c.Generators))
	for _, g := range c.EnabledGenerators() {
		out[g.Name] = g.Priority
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
