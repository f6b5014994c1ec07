package testsupport

import (
	"context"
	"testing"

	"passfuse/internal/config"
	"passfuse/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// BeginRun records a running run for tests.
func BeginRun(t testing.TB, st *store.Store, id string) store.Run {
	t.Helper()

	run := store.Run{ID: id, Budget: 10, Generators: []string{"rules"}}
	if err := st.BeginRun(context.Background(), run); err != nil {
		t.Fatalf("store.BeginRun: %v", err)
	}
	return run
}
