package main

import (
	"context"
	"encoding/json"
	"testing"
)

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	tree := writeInstallFixture(t, env.baseDir)

	if _, _, err := runCLI(t, []string{"install", tree}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("install: %v", err)
	}

	out, _, err := runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "opus 1.5.2")
	requireContains(t, out, "Release")
	requireContains(t, out, "Completed")
	requireContains(t, out, env.cfg.Install.Prefix)
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No install runs recorded")
}

func TestHistoryDescribeRun(t *testing.T) {
	env := setupCLITestEnv(t)
	tree := writeInstallFixture(t, env.baseDir)

	if _, _, err := runCLI(t, []string{"install", tree}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("install: %v", err)
	}

	runs, err := env.store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	runID := runs[0].ID

	out, _, err := runCLI(t, []string{"history", runID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history %s: %v", runID, err)
	}
	requireContains(t, out, "Run "+shortID(runID))
	requireContains(t, out, "Plan:          opus 1.5.2")
	requireContains(t, out, "Counts:        3 installed, 0 up-to-date, 2 skipped")
	requireContains(t, out, "libopus.a")
}

func TestHistoryDescribeJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	tree := writeInstallFixture(t, env.baseDir)

	if _, _, err := runCLI(t, []string{"install", tree}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("install: %v", err)
	}

	runs, err := env.store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}

	out, _, err := runCLI(t, []string{"history", runs[0].ID, "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}

	var detail map[string]any
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if detail["plan"] != "opus" {
		t.Fatalf("expected plan opus, got %v", detail["plan"])
	}
	if detail["status"] != "completed" {
		t.Fatalf("expected status completed, got %v", detail["status"])
	}
	files, ok := detail["files"].([]any)
	if !ok || len(files) != 3 {
		t.Fatalf("expected 3 run files, got %v", detail["files"])
	}
}

func TestHistoryUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"history", "feedface"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected unknown run error")
	}
	requireContains(t, err.Error(), "run feedface not found")
}
