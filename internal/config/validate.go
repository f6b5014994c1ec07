package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"passfuse/internal/services"
)

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %w", services.ErrConfiguration, fmt.Errorf(format, args...))
}

// Validate ensures the configuration is usable. Errors wrap services.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validateBudget(); err != nil {
		return err
	}
	if err := c.validateStrength(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateGenerators()
}

func (c *Config) validateBudget() error {
	if c.Budget.K <= 0 {
		return configError("budget.k must be positive (got %d)", c.Budget.K)
	}
	if math.IsNaN(c.Budget.Overfetch) || c.Budget.Overfetch < 1 {
		return configError("budget.overfetch must be >= 1 (got %g)", c.Budget.Overfetch)
	}
	if math.IsNaN(c.Budget.Fairness) || c.Budget.Fairness < 0 || c.Budget.Fairness > 1 {
		return configError("budget.fairness must be between 0 and 1 (got %g)", c.Budget.Fairness)
	}
	if c.Budget.MaxPerSource < 0 {
		return configError("budget.max_per_source must be >= 0")
	}
	if c.Budget.MaxEntries < 0 {
		return configError("budget.max_entries must be >= 0")
	}
	if target := int(math.Ceil(float64(c.Budget.K) * c.Budget.Overfetch)); c.Budget.MaxEntries > 0 && c.Budget.MaxEntries < target {
		return configError("budget.max_entries (%d) must be at least k * overfetch (%d)", c.Budget.MaxEntries, target)
	}
	return ensurePositiveMap(map[string]int{
		"budget.min_window": c.Budget.MinWindow,
		"budget.batch_size": c.Budget.BatchSize,
	})
}

func (c *Config) validateStrength() error {
	if c.Strength.Min < 0 {
		return configError("strength.min must be >= 0")
	}
	if c.Strength.Max < c.Strength.Min {
		return configError("strength.max (%g) must not be below strength.min (%g)", c.Strength.Max, c.Strength.Min)
	}
	for i, pattern := range c.Strength.ExcludePatterns {
		if strings.TrimSpace(pattern) == "" {
			return configError("strength.exclude_patterns[%d] must not be blank", i)
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	return ensurePositiveMap(map[string]int{
		"pipeline.workers":                 c.Pipeline.Workers,
		"pipeline.default_timeout_seconds": c.Pipeline.DefaultTimeoutSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return configError("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
}

func (c *Config) validateGenerators() error {
	enabled := c.EnabledGenerators()
	if len(enabled) == 0 {
		return configError("at least one enabled [[generators]] entry is required")
	}
	seen := make(map[string]struct{}, len(c.Generators))
	var total float64
	for i, g := range c.Generators {
		prefix := fmt.Sprintf("generators[%d]", i)
		if g.Name == "" {
			return configError("%s.name must be set", prefix)
		}
		prefix = fmt.Sprintf("generators[%d] (%s)", i, g.Name)
		if _, dup := seen[g.Name]; dup {
			return configError("%s: duplicate generator name", prefix)
		}
		seen[g.Name] = struct{}{}
		if math.IsNaN(g.Priority) || math.IsInf(g.Priority, 0) || g.Priority < 0 {
			return configError("%s.priority must be a finite value >= 0", prefix)
		}
		if g.IsEnabled() {
			total += g.Priority
		}
		switch g.Missing {
		case "skip", "fail":
		default:
			return configError("%s.missing must be skip or fail (got %q)", prefix, g.Missing)
		}
		if g.TimeoutSeconds < 0 {
			return configError("%s.timeout_seconds must be >= 0", prefix)
		}
		if g.TopN < 0 {
			return configError("%s.top_n must be >= 0", prefix)
		}
		if g.SamplingTemperature < 0 {
			return configError("%s.sampling_temperature must be >= 0", prefix)
		}
		if err := validateGeneratorOptions(prefix, g); err != nil {
			return err
		}
	}
	if total == 0 {
		return configError("enabled generator priorities sum to zero")
	}
	for _, g := range enabled {
		if g.Priority == 0 {
			return configError("generator %s: priority must be positive when enabled", g.Name)
		}
	}
	return nil
}

func validateGeneratorOptions(prefix string, g Generator) error {
	switch g.Type {
	case TypeFile:
		if g.Path == "" {
			return configError("%s.path is required for file generators", prefix)
		}
	case TypeCommand:
		if g.Command == "" {
			return configError("%s.command is required for command generators", prefix)
		}
	case TypeHTTP:
		if g.URL == "" {
			return configError("%s.url is required for http generators", prefix)
		}
		parsed, err := url.Parse(g.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return configError("%s.url must be an absolute http(s) URL (got %q)", prefix, g.URL)
		}
	case TypePII:
	case "":
		return configError("%s.type must be set", prefix)
	default:
		return configError("%s.type %q is not one of file, command, http, pii", prefix, g.Type)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return configError("%s must be positive", key)
		}
	}
	return nil
}
