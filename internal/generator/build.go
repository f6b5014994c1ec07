package generator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"passfuse/internal/config"
	"passfuse/internal/identity"
	"passfuse/internal/services"
)

// Build constructs an adapter for every enabled generator in cfg, in
// configuration order. Any construction failure is a configuration error.
func Build(cfg *config.Config, logger *slog.Logger) ([]*Adapter, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "generator", "build", "config is nil", nil)
	}
	var (
		adapters []*Adapter
		errs     []error
	)
	for _, g := range cfg.EnabledGenerators() {
		adapter, err := buildOne(g, logger)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		adapters = append(adapters, adapter)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return adapters, nil
}

func buildOne(g config.Generator, logger *slog.Logger) (*Adapter, error) {
	required := requiredFields(g.Required)
	missing, err := ParseMissingPolicy(g.Missing)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "generator", g.Name, "", err)
	}

	var gen Generator
	switch g.Type {
	case config.TypeFile:
		gen, err = NewFile(g.Name, g.Path)
	case config.TypeCommand:
		gen, err = NewCommand(g.Name, g.Command, CommandOptions{
			Args:                g.Args,
			Required:            required,
			TopN:                g.TopN,
			SamplingTemperature: g.SamplingTemperature,
		})
	case config.TypeHTTP:
		gen = NewHTTP(g.Name, g.URL, HTTPOptions{
			APIKey:              g.APIKey,
			Required:            required,
			TopN:                g.TopN,
			SamplingTemperature: g.SamplingTemperature,
		})
	case config.TypePII:
		var rules *RuleSet
		if g.RuleSet != "" {
			rules, err = LoadRuleSet(g.RuleSet)
		}
		if err == nil {
			gen, err = NewPII(g.Name, rules)
		}
	default:
		err = fmt.Errorf("unknown generator type %q", g.Type)
	}
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrConfiguration, "generator", g.Name, "", err)
	}

	return NewAdapter(Spec{
		Name:     g.Name,
		Priority: g.Priority,
		Required: required,
		Missing:  missing,
		Timeout:  g.Timeout(),
	}, gen, logger)
}

// requiredFields keeps nil for an unset list so the generator's own
// requirements apply.
func requiredFields(values []string) []identity.Field {
	if values == nil {
		return nil
	}
	out := make([]identity.Field, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, identity.Field(v))
		}
	}
	return out
}
