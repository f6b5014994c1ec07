// Package services defines shared utilities consumed by the pipeline stages and
// generator adapters.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, identity keys, generator names, and
//     stage names for logging.
//   - Structured error markers plus the Wrap helper; Kind translates failures
//     into the diagnostic kinds recorded per identity (missing attribute,
//     generator unavailable, empty output, configuration).
//
// Use these helpers when wiring new generators so failure isolation and
// observability stay uniform across the pipeline.
package services
