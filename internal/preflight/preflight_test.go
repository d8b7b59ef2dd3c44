package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"stagehand/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckInstallPrefix_Existing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Install.Prefix, 0o755); err != nil {
		t.Fatal(err)
	}
	result := CheckInstallPrefix(cfg)
	if !result.Passed {
		t.Fatalf("expected pass for existing prefix, got: %s", result.Detail)
	}
}

func TestCheckInstallPrefix_CreatableUnderAncestor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Install.Prefix = filepath.Join(t.TempDir(), "opt", "opus")

	result := CheckInstallPrefix(cfg)
	if !result.Passed {
		t.Fatalf("expected pass for creatable prefix, got: %s", result.Detail)
	}
}

func TestCheckInstallPrefix_UsesDestDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Install.Prefix = "/usr/local"
	cfg.Install.DestDir = t.TempDir()

	result := CheckInstallPrefix(cfg)
	if !result.Passed {
		t.Fatalf("expected pass with destdir staging, got: %s", result.Detail)
	}
}

func TestCheckDropPlans_CountsTrees(t *testing.T) {
	dropDir := t.TempDir()

	good := filepath.Join(dropDir, "opus-build")
	testsupport.WriteFileString(t, filepath.Join(good, "install.toml"), `default_config = "Release"

[project]
name = "opus"
version = "1.4"

[[artifact]]
source = "libopus.a"
kind = "static-lib"
`)
	testsupport.WriteFileString(t, filepath.Join(good, "libopus.a"), "bytes")

	if err := os.MkdirAll(filepath.Join(dropDir, "not-a-tree"), 0o755); err != nil {
		t.Fatal(err)
	}

	result := CheckDropPlans(dropDir)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result.Detail != "1 build trees ready" {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDropPlans_ReportsInvalid(t *testing.T) {
	dropDir := t.TempDir()
	testsupport.WriteFileString(t, filepath.Join(dropDir, "broken", "install.toml"), "default_config = [oops")

	result := CheckDropPlans(dropDir)
	if result.Passed {
		t.Fatal("expected failure for invalid plan")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckRegistry_OK(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result := CheckRegistry(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}
