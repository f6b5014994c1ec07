// Package generator defines the candidate generator contract and the adapter
// that makes every generator behave uniformly toward the fusion engine.
//
// A Generator turns an identity into a ranked candidate stream. The Adapter
// wraps one generator with its configuration: priority, required identity
// fields and the policy for records lacking them, and a per-call timeout. It
// converts failures, panics and timeouts into an empty stream plus a marked
// error the orchestrator records as a diagnostic, so one broken generator never
// takes down an identity.
//
// Concrete generators:
//   - file: pre-computed answer files segmented by "<END>" per identity
//   - command: an external program fed the identity line on stdin
//   - http: a model service answering with NDJSON candidates
//   - pii: built-in PII mutation combining identity variants with word lists
//
// Build constructs adapters from configuration.
package generator
