// Package runner executes one passfuse run end to end.
//
// A run reads the targets file, locks the output directory, builds the
// configured generators, streams every identity through the pipeline and
// records the outcome in both the output artifacts and the run store. The
// CLI's `run` command is a thin wrapper around Run.
package runner
