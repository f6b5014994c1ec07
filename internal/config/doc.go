// Package config loads, normalizes, and validates passfuse configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as PASSFUSE_HTTP_API_KEY.
// The Config type holds the per-identity budget, strength bounds, pipeline
// concurrency and the list of generators with their fusion priorities.
//
// Validation errors are tagged with services.ErrConfiguration so callers can
// tell a broken configuration apart from run-time failures.
package config
