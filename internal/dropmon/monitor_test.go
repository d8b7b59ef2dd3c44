package dropmon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"stagehand/internal/logging"
	"stagehand/internal/plan"
	"stagehand/internal/registry"
	"stagehand/internal/testsupport"
)

const dropPlan = `default_config = "Release"

[project]
name = "opus"
version = "1.4"

[[artifact]]
source = "libopus.a"
kind = "static-lib"

[[artifact]]
source = "include/opus.h"
kind = "header"
`

func writeDropTree(t *testing.T, dropDir, name string) string {
	t.Helper()
	tree := filepath.Join(dropDir, name)
	testsupport.WriteFileString(t, filepath.Join(tree, "install.toml"), dropPlan)
	testsupport.WriteFileString(t, filepath.Join(tree, "libopus.a"), "static library bytes")
	testsupport.WriteFileString(t, filepath.Join(tree, "include", "opus.h"), "#define OPUS_H\n")
	return tree
}

func newTestMonitor(t *testing.T) (*Monitor, *registry.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.DropDir, 0o755); err != nil {
		t.Fatalf("mkdir drop dir: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	monitor := NewMonitor(cfg, store, logging.NewNop())
	if monitor == nil {
		t.Fatal("expected monitor")
	}
	return monitor, store, cfg.Paths.DropDir
}

func TestSweepEnqueuesNewTree(t *testing.T) {
	monitor, store, dropDir := newTestMonitor(t)
	ctx := context.Background()
	tree := writeDropTree(t, dropDir, "opus-build")

	monitor.sweep(ctx)

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
	if jobs[0].DropPath != tree {
		t.Fatalf("expected drop path %s, got %s", tree, jobs[0].DropPath)
	}
	if jobs[0].Fingerprint == "" {
		t.Fatal("expected fingerprint recorded")
	}
	if jobs[0].Status != registry.StatusPending {
		t.Fatalf("expected pending job, got %s", jobs[0].Status)
	}
}

func TestSweepSkipsUnchangedTree(t *testing.T) {
	monitor, store, dropDir := newTestMonitor(t)
	ctx := context.Background()
	writeDropTree(t, dropDir, "opus-build")

	monitor.sweep(ctx)
	monitor.sweep(ctx)
	monitor.sweep(ctx)

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job after repeated sweeps, got %d", len(jobs))
	}
}

func TestSweepIgnoresEntriesWithoutPlan(t *testing.T) {
	monitor, store, dropDir := newTestMonitor(t)
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(dropDir, "random-dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testsupport.WriteFileString(t, filepath.Join(dropDir, "notes.txt"), "not a tree")

	monitor.sweep(ctx)

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestSweepEnqueuesRebuiltTree(t *testing.T) {
	monitor, store, dropDir := newTestMonitor(t)
	ctx := context.Background()
	tree := writeDropTree(t, dropDir, "opus-build")

	monitor.sweep(ctx)

	// A rebuild changes the artifact size, which changes the fingerprint.
	testsupport.WriteFileString(t, filepath.Join(tree, "libopus.a"), "static library bytes, larger after rebuild")

	monitor.sweep(ctx)

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected a second job for the rebuilt tree, got %d", len(jobs))
	}
}

func TestSweepLeavesFailedJobAlone(t *testing.T) {
	monitor, store, dropDir := newTestMonitor(t)
	ctx := context.Background()
	writeDropTree(t, dropDir, "opus-build")

	monitor.sweep(ctx)

	jobs, err := store.List(ctx)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("expected one job, got %d (err %v)", len(jobs), err)
	}
	job := jobs[0]
	job.SetFailed("install blew up")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	monitor.sweep(ctx)

	refreshed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if refreshed.Status != registry.StatusFailed {
		t.Fatalf("expected failed job untouched, got %s", refreshed.Status)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected no new job for failed tree, got %d", len(all))
	}
}

func TestFingerprintChangesWithPlanIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tree := filepath.Join(testsupport.BaseDir(cfg), "tree")
	testsupport.WriteFileString(t, filepath.Join(tree, "libopus.a"), "bytes")
	testsupport.WriteFileString(t, filepath.Join(tree, "include", "opus.h"), "header")

	p, err := plan.Parse([]byte(dropPlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	first, err := Fingerprint(tree, p)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	again, err := Fingerprint(tree, p)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if first != again {
		t.Fatal("expected stable fingerprint for unchanged tree")
	}

	p.Project.Version = "1.5"
	bumped, err := Fingerprint(tree, p)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if bumped == first {
		t.Fatal("expected fingerprint to change with plan version")
	}
}
