// Package logging assembles the structured slog loggers used across passfuse.
//
// It owns the console and JSON handlers, fans records out to the terminal and
// an optional JSON log file, and exposes context-aware helpers so pipeline code
// can tag lines with the run, identity, generator and stage it is working on.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
