package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"stagehand/internal/registry"
)

func TestJobsListShowsQueuedJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.NewJob(ctx, "/drops/alpha-tree", "fp-alpha"); err != nil {
		t.Fatalf("alpha job: %v", err)
	}

	beta, err := env.store.NewJob(ctx, "/drops/beta-tree", "fp-beta")
	if err != nil {
		t.Fatalf("beta job: %v", err)
	}
	beta.Status = registry.StatusFailed
	if err := env.store.Update(ctx, beta); err != nil {
		t.Fatalf("beta failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "alpha-tree")
	requireContains(t, out, "beta-tree")
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, []string{"jobs", "list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list --status failed: %v", err)
	}
	requireContains(t, out, "beta-tree")
	if strings.Contains(out, "alpha-tree") {
		t.Fatalf("expected failed filter to exclude pending job, got:\n%s", out)
	}
}

func TestJobsListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"jobs", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "No jobs queued")
}

func TestJobsRetryAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	alpha, err := env.store.NewJob(ctx, "/drops/alpha-tree", "fp-alpha")
	if err != nil {
		t.Fatalf("alpha: %v", err)
	}
	alpha.Status = registry.StatusFailed
	if err := env.store.Update(ctx, alpha); err != nil {
		t.Fatalf("alpha failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed jobs")

	updated, err := env.store.GetByID(ctx, alpha.ID)
	if err != nil {
		t.Fatalf("lookup alpha: %v", err)
	}
	if updated.Status != registry.StatusPending {
		t.Fatalf("expected pending, got %s", updated.Status)
	}

	updated.Status = registry.StatusFailed
	if err := env.store.Update(ctx, updated); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	out, _, err = runCLI(t, []string{"jobs", "clear", "--failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed jobs")

	out, _, err = runCLI(t, []string{"jobs", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs clear: %v", err)
	}
	requireContains(t, out, "Cleared")
}

func TestJobsRetrySpecificID(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	alpha, err := env.store.NewJob(ctx, "/drops/alpha-tree", "fp-alpha")
	if err != nil {
		t.Fatalf("alpha: %v", err)
	}
	alpha.Status = registry.StatusFailed
	if err := env.store.Update(ctx, alpha); err != nil {
		t.Fatalf("alpha failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "retry", fmt.Sprintf("%d", alpha.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs retry specific: %v", err)
	}
	requireContains(t, out, "Reset 1 of 1 jobs for retry")

	updated, err := env.store.GetByID(ctx, alpha.ID)
	if err != nil {
		t.Fatalf("lookup alpha: %v", err)
	}
	if updated.Status != registry.StatusPending {
		t.Fatalf("expected pending, got %s", updated.Status)
	}
}

func TestJobsRetryInvalidID(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"jobs", "retry", "abc"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid job id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestJobsClearConflictingScopes(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"jobs", "clear", "--completed", "--failed"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "only one of") {
		t.Fatalf("expected scope conflict error, got %v", err)
	}
}

func TestJobsListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.NewJob(ctx, "/drops/alpha-tree", "fp-alpha"); err != nil {
		t.Fatalf("alpha job: %v", err)
	}
	if _, err := env.store.NewJob(ctx, "/drops/beta-tree", "fp-beta"); err != nil {
		t.Fatalf("beta job: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list --json: %v", err)
	}

	var jobs []map[string]any
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if _, ok := job["id"]; !ok {
			t.Fatal("missing 'id' key in JSON job")
		}
		if _, ok := job["status"]; !ok {
			t.Fatal("missing 'status' key in JSON job")
		}
		if _, ok := job["drop_path"]; !ok {
			t.Fatal("missing 'drop_path' key in JSON job")
		}
	}
}

func TestJobsListJSONEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"jobs", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list --json empty: %v", err)
	}

	var jobs []any
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty array, got %d jobs", len(jobs))
	}
}

func TestJobsDescribeJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job, err := env.store.NewJob(ctx, "/drops/opus-tree", "fp-opus")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.PlanName = "opus"
	job.PlanVersion = "1.5.2"
	job.Configuration = "Release"
	if err := env.store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "describe", fmt.Sprintf("%d", job.ID), "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs describe --json: %v", err)
	}

	var detail map[string]any
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if detail["id"] != float64(job.ID) {
		t.Fatalf("expected id %d, got %v", job.ID, detail["id"])
	}
	if detail["plan_name"] != "opus" {
		t.Fatalf("expected plan_name opus, got %v", detail["plan_name"])
	}
	if detail["configuration"] != "Release" {
		t.Fatalf("expected configuration Release, got %v", detail["configuration"])
	}
}

func TestJobsDescribeNotFound(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"jobs", "describe", "9999"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestJobsDescribeDisplaysDetail(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job, err := env.store.NewJob(ctx, "/drops/opus-tree", "fp-opus")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.PlanName = "opus"
	job.PlanVersion = "1.5.2"
	job.Status = registry.StatusStaged
	job.Configuration = "RelWithDebInfo"
	job.Component = "runtime"
	job.StagedPath = "/staging/job-1"
	job.ProgressStage = "Stage"
	job.ProgressPercent = 100
	if err := env.store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "describe", fmt.Sprintf("%d", job.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs describe: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Job #%d", job.ID))
	requireContains(t, out, "opus 1.5.2")
	requireContains(t, out, "Status:        Staged")
	requireContains(t, out, "Configuration: RelWithDebInfo")
	requireContains(t, out, "Component:     runtime")
	requireContains(t, out, "Build tree:    /drops/opus-tree")
	requireContains(t, out, "Staged at:     /staging/job-1")
}
