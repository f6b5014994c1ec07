// Package pipeline runs identities through generators, fusion and selection.
//
// An Orchestrator processes identities concurrently, bounded by a worker
// count. For each identity every configured adapter is opened in its own
// goroutine, the resulting streams are fused, and the selector applies the
// budget. Failures of a single generator or identity become diagnostics on
// that identity's Result; only configuration errors, sink errors and context
// cancellation abort a run.
//
// Results reach the Sink in input order regardless of scheduling, so
// artifacts are reproducible.
package pipeline
