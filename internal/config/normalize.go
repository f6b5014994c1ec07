package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeLogging()
	return c.normalizeGenerators()
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = runtime.NumCPU()
	}
	if c.Pipeline.DefaultTimeoutSeconds == 0 {
		c.Pipeline.DefaultTimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Budget.MinWindow <= 0 {
		c.Budget.MinWindow = defaultMinWindow
	}
	if c.Budget.BatchSize <= 0 {
		c.Budget.BatchSize = defaultBatchSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// DefaultGenerator is used when the configuration lists no generators.
func DefaultGenerator() Generator {
	return Generator{Name: "rules", Type: TypePII, Priority: 1, Missing: defaultMissingPolicy}
}

func (c *Config) normalizeGenerators() error {
	if len(c.Generators) == 0 {
		c.Generators = []Generator{DefaultGenerator()}
	}
	for i := range c.Generators {
		g := &c.Generators[i]
		g.Name = strings.TrimSpace(g.Name)
		g.Type = strings.ToLower(strings.TrimSpace(g.Type))
		g.Missing = strings.ToLower(strings.TrimSpace(g.Missing))
		if g.Missing == "" {
			g.Missing = defaultMissingPolicy
		}
		if g.TimeoutSeconds == 0 {
			g.TimeoutSeconds = c.Pipeline.DefaultTimeoutSeconds
		}
		required := g.Required[:0]
		for _, field := range g.Required {
			if field = strings.ToLower(strings.TrimSpace(field)); field != "" {
				required = append(required, field)
			}
		}
		g.Required = required

		var err error
		if g.Path, err = expandPath(strings.TrimSpace(g.Path)); err != nil {
			return fmt.Errorf("generators[%d].path: %w", i, err)
		}
		if g.RuleSet, err = expandPath(strings.TrimSpace(g.RuleSet)); err != nil {
			return fmt.Errorf("generators[%d].rule_set: %w", i, err)
		}
		g.Command = strings.TrimSpace(g.Command)
		if strings.HasPrefix(g.Command, "~") {
			if g.Command, err = expandPath(g.Command); err != nil {
				return fmt.Errorf("generators[%d].command: %w", i, err)
			}
		}
		g.URL = strings.TrimSpace(g.URL)
		g.APIKey = strings.TrimSpace(g.APIKey)
		if g.Type == TypeHTTP && g.APIKey == "" {
			if value, ok := os.LookupEnv(defaultHTTPAPIKeyEnvironment); ok {
				g.APIKey = strings.TrimSpace(value)
			}
		}
	}
	return nil
}
