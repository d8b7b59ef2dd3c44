package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBundleFromLatestRun(t *testing.T) {
	env := setupCLITestEnv(t)
	tree := writeInstallFixture(t, env.baseDir)

	if _, _, err := runCLI(t, []string{"install", tree}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("install: %v", err)
	}

	out, _, err := runCLI(t, []string{"bundle"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	expected := filepath.Join(env.cfg.Paths.BundleDir, "opus-1.5.2-Release.tar.gz")
	requireContains(t, out, "Wrote "+expected)
	requireFileExists(t, expected)
}

func TestBundleExplicitName(t *testing.T) {
	env := setupCLITestEnv(t)
	tree := writeInstallFixture(t, env.baseDir)
	outDir := filepath.Join(env.baseDir, "dist")

	if _, _, err := runCLI(t, []string{"install", tree}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("install: %v", err)
	}

	out, _, err := runCLI(t, []string{"bundle", "--name", "codec", "--version", "2.0", "--out", outDir}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("bundle --name: %v", err)
	}
	expected := filepath.Join(outDir, "codec-2.0.tar.gz")
	requireContains(t, out, "Wrote "+expected)
	requireFileExists(t, expected)
}

func TestBundleWithoutRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"bundle"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no recorded run for") {
		t.Fatalf("expected missing run error, got %v", err)
	}
}

func TestBundleEmptyTree(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Install.Prefix, 0o755); err != nil {
		t.Fatalf("create prefix: %v", err)
	}

	_, _, err := runCLI(t, []string{"bundle", "--name", "codec"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "nothing to package") {
		t.Fatalf("expected empty tree error, got %v", err)
	}
}

func TestBundleJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	tree := writeInstallFixture(t, env.baseDir)

	if _, _, err := runCLI(t, []string{"install", tree}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("install: %v", err)
	}

	out, _, err := runCLI(t, []string{"bundle", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("bundle --json: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if path, _ := result["path"].(string); !strings.HasSuffix(path, "opus-1.5.2-Release.tar.gz") {
		t.Fatalf("expected bundle path, got %v", result["path"])
	}
	if size, _ := result["bytes"].(float64); size <= 0 {
		t.Fatalf("expected positive bundle size, got %v", result["bytes"])
	}
}
