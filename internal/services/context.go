package services

import "context"

type contextKey string

const (
	identityKey  contextKey = "identity"
	generatorKey contextKey = "generator"
	stageKey     contextKey = "stage"
	runIDKey     contextKey = "run_id"
)

// WithIdentity annotates context with the identity key being processed.
func WithIdentity(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey, key)
}

// IdentityFromContext extracts the identity key if present.
func IdentityFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(identityKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithGenerator annotates context with the generator name.
func WithGenerator(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, generatorKey, name)
}

// GeneratorFromContext returns the generator name if present.
func GeneratorFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(generatorKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
