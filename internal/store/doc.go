// Package store persists runs, per-identity selections and diagnostics in
// SQLite.
//
// A run is opened with BeginRun, receives one SaveResult per identity (the
// outputs and diagnostics of an identity are written in a single
// transaction) and is closed by FinishRun. The read side backs the show and
// diagnostics commands.
//
// Schema changes bump schemaVersion in schema.go; an older database is
// rejected with ErrSchemaMismatch and must be deleted.
package store
