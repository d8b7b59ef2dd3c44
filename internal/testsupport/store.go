package testsupport

import (
	"context"
	"testing"

	"stagehand/internal/config"
	"stagehand/internal/registry"
)

// MustOpenStore opens a registry store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *registry.Store {
	t.Helper()

	st, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *registry.Store, dropPath, fingerprint string) *registry.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), dropPath, fingerprint)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}
