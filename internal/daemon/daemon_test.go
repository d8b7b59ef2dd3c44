package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"stagehand/internal/config"
	"stagehand/internal/daemon"
	"stagehand/internal/logging"
	"stagehand/internal/registry"
	"stagehand/internal/stage"
	"stagehand/internal/testsupport"
	"stagehand/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *registry.Job) error { return nil }
func (noopStage) Execute(context.Context, *registry.Job) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func newTestDaemon(t *testing.T) (*daemon.Daemon, *registry.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{Validator: noopStage{}})
	d, err := daemon.New(cfg, store, logger, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store, cfg
}

func TestDaemonStartStop(t *testing.T) {
	d, _, cfg := newTestDaemon(t)
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), status.PID)
	}
	if status.RegistryPath != cfg.RegistryPath() {
		t.Fatalf("expected registry path %s, got %s", cfg.RegistryPath(), status.RegistryPath)
	}
	if len(status.Preflight) == 0 {
		t.Fatal("expected preflight results after start")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	first, store, cfg := newTestDaemon(t)
	t.Cleanup(func() {
		first.Stop()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{Validator: noopStage{}})
	second, err := daemon.New(cfg, store, logger, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance start to fail while lock is held")
	}
}

func TestDaemonResetsStrandedJobsOnStart(t *testing.T) {
	d, store, _ := newTestDaemon(t)
	t.Cleanup(func() {
		d.Stop()
	})

	ctx := context.Background()
	job, err := store.NewRequest(ctx, "/build/opus", "", "")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	job.Status = registry.StatusInstalling
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	d.Stop()

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != registry.StatusStaged {
		t.Fatalf("expected stranded job reset to staged, got %s", reloaded.Status)
	}
}

func TestDaemonSubmitInstall(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	ctx := context.Background()

	if _, err := d.SubmitInstall(ctx, "", "", ""); err == nil {
		t.Fatal("expected error for empty build tree")
	}
	if _, err := d.SubmitInstall(ctx, filepath.Join(t.TempDir(), "missing"), "", ""); err == nil {
		t.Fatal("expected error for missing build tree")
	}

	bare := t.TempDir()
	if _, err := d.SubmitInstall(ctx, bare, "", ""); err == nil {
		t.Fatal("expected error for tree without install plan")
	}

	tree := t.TempDir()
	testsupport.WriteFileString(t, filepath.Join(tree, "install.toml"), "[project]\nname = \"opus\"\n")

	if _, err := d.SubmitInstall(ctx, tree, "Bogus", ""); err == nil {
		t.Fatal("expected error for unknown configuration")
	}

	job, err := d.SubmitInstall(ctx, tree, "release", "runtime")
	if err != nil {
		t.Fatalf("SubmitInstall: %v", err)
	}
	if job.DropPath != tree {
		t.Fatalf("expected build tree %s, got %s", tree, job.DropPath)
	}
	if job.Configuration != "Release" {
		t.Fatalf("expected configuration normalized to Release, got %q", job.Configuration)
	}
	if job.Component != "runtime" {
		t.Fatalf("expected component runtime, got %q", job.Component)
	}
	if job.Status != registry.StatusPending {
		t.Fatalf("expected pending job, got %s", job.Status)
	}
}

func TestDaemonClearJobsScopes(t *testing.T) {
	d, store, _ := newTestDaemon(t)
	ctx := context.Background()

	seed := func(status registry.Status) {
		t.Helper()
		job, err := store.NewRequest(ctx, "/build/opus", "", "")
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		job.Status = status
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	seed(registry.StatusCompleted)
	seed(registry.StatusFailed)
	seed(registry.StatusPending)

	if _, err := d.ClearJobs(ctx, "bogus"); err == nil {
		t.Fatal("expected error for unknown scope")
	}

	removed, err := d.ClearJobs(ctx, daemon.ClearScopeCompleted)
	if err != nil {
		t.Fatalf("ClearJobs completed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one completed job cleared, got %d", removed)
	}

	removed, err = d.ClearJobs(ctx, daemon.ClearScopeFailed)
	if err != nil {
		t.Fatalf("ClearJobs failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one failed job cleared, got %d", removed)
	}

	removed, err = d.ClearJobs(ctx, daemon.ClearScopeAll)
	if err != nil {
		t.Fatalf("ClearJobs all: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected remaining job cleared, got %d", removed)
	}
}

func TestDaemonRetryJobs(t *testing.T) {
	d, store, _ := newTestDaemon(t)
	ctx := context.Background()

	job, err := store.NewRequest(ctx, "/build/opus", "", "")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	job.SetFailed("install blew up")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	retried, err := d.RetryJobs(ctx, []int64{job.ID})
	if err != nil {
		t.Fatalf("RetryJobs: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected one job retried, got %d", retried)
	}
	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != registry.StatusPending {
		t.Fatalf("expected pending after retry, got %s", reloaded.Status)
	}
	if reloaded.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", reloaded.ErrorMessage)
	}
}
