package install_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stagehand/internal/install"
	"stagehand/internal/logging"
	"stagehand/internal/manifest"
	"stagehand/internal/plan"
	"stagehand/internal/registry"
	"stagehand/internal/services"
	"stagehand/internal/testsupport"
)

func TestRunInstallsArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, true)

	result, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Configuration != plan.Release {
		t.Fatalf("expected Release, got %s", result.Configuration)
	}
	if result.InstalledCount != 6 || result.UpToDateCount != 0 {
		t.Fatalf("unexpected counts: installed=%d upToDate=%d", result.InstalledCount, result.UpToDateCount)
	}
	if result.SkippedCount != 1 {
		t.Fatalf("expected 1 skipped entry, got %d", result.SkippedCount)
	}
	if result.TotalBytes == 0 {
		t.Fatal("expected bytes copied")
	}

	prefix := cfg.Install.Prefix
	lib, err := os.ReadFile(filepath.Join(prefix, "lib", "libopus.a"))
	if err != nil {
		t.Fatalf("read installed lib: %v", err)
	}
	if string(lib) != "!<arch>\nopus static archive\n" {
		t.Fatalf("unexpected lib contents: %q", lib)
	}
	info, err := os.Stat(filepath.Join(prefix, "lib", "libopus.a"))
	if err != nil {
		t.Fatalf("stat installed lib: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644, got %o", info.Mode().Perm())
	}
	if _, err := os.Stat(filepath.Join(prefix, "include", "opus", "opus.h")); err != nil {
		t.Fatalf("expected header installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(prefix, "share", "notes.txt")); err != nil {
		t.Fatalf("expected optional data installed: %v", err)
	}

	pc, err := os.ReadFile(filepath.Join(prefix, "lib", "pkgconfig", "opus.pc"))
	if err != nil {
		t.Fatalf("read installed pc: %v", err)
	}
	if !strings.Contains(string(pc), "prefix="+prefix+"\n") {
		t.Fatalf("expected prefix rewritten to %s, got:\n%s", prefix, pc)
	}
	if !strings.Contains(string(pc), "Libs: -L${libdir} -lopus\n") {
		t.Fatalf("expected pc body preserved, got:\n%s", pc)
	}

	if result.ManifestPath != filepath.Join(prefix, "install_manifest.txt") {
		t.Fatalf("unexpected manifest path %s", result.ManifestPath)
	}
	paths, err := manifest.Read(result.ManifestPath)
	if err != nil {
		t.Fatalf("manifest.Read: %v", err)
	}
	if len(paths) != 6 {
		t.Fatalf("expected 6 manifest entries, got %d", len(paths))
	}
	if paths[0] != filepath.Join(prefix, "lib", "libopus.a") {
		t.Fatalf("expected install order preserved, got first %s", paths[0])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, true)

	first, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	manifestBefore, err := os.ReadFile(first.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}

	second, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.InstalledCount != 0 {
		t.Fatalf("expected no reinstalls, got %d", second.InstalledCount)
	}
	if second.UpToDateCount != 6 {
		t.Fatalf("expected 6 up-to-date files, got %d", second.UpToDateCount)
	}
	if second.TotalBytes != 0 {
		t.Fatalf("expected no bytes copied on rerun, got %d", second.TotalBytes)
	}

	manifestAfter, err := os.ReadFile(second.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest after rerun: %v", err)
	}
	if string(manifestBefore) != string(manifestAfter) {
		t.Fatal("expected manifest regenerated identically")
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, true)

	result, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Files) != 6 {
		t.Fatalf("expected 6 planned files, got %d", len(result.Files))
	}
	for _, file := range result.Files {
		if file.Outcome != install.OutcomePlanned {
			t.Fatalf("expected planned outcome, got %s for %s", file.Outcome, file.Path)
		}
	}
	if result.ManifestPath != "" {
		t.Fatalf("expected no manifest in dry run, got %s", result.ManifestPath)
	}
	if _, err := os.Stat(cfg.Install.Prefix); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected prefix untouched, stat err=%v", err)
	}
}

func TestRunDestDirStagesTree(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, false)
	destDir := filepath.Join(testsupport.BaseDir(cfg), "package-root")

	result, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree, DestDir: destDir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantRoot := filepath.Join(destDir, cfg.Install.Prefix)
	if result.Root != wantRoot {
		t.Fatalf("expected root %s, got %s", wantRoot, result.Root)
	}
	if _, err := os.Stat(filepath.Join(wantRoot, "lib", "libopus.a")); err != nil {
		t.Fatalf("expected staged lib: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Install.Prefix, "lib", "libopus.a")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected logical prefix untouched, stat err=%v", err)
	}

	pc, err := os.ReadFile(filepath.Join(wantRoot, "lib", "pkgconfig", "opus.pc"))
	if err != nil {
		t.Fatalf("read staged pc: %v", err)
	}
	if !strings.Contains(string(pc), "prefix="+cfg.Install.Prefix+"\n") {
		t.Fatalf("expected staged pc to reference final prefix, got:\n%s", pc)
	}
	if result.ManifestPath != filepath.Join(wantRoot, "install_manifest.txt") {
		t.Fatalf("expected manifest under staged root, got %s", result.ManifestPath)
	}
}

func TestRunAbortsWhenSourceMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, true)
	if err := os.Remove(filepath.Join(tree, "include", "opus.h")); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	_, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree})
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, statErr := os.Stat(cfg.Install.Prefix); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected nothing installed before abort, stat err=%v", statErr)
	}
}

func TestRunSweepsStaleExportsOnReplace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, false)

	if _, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	exportDir := filepath.Join(cfg.Install.Prefix, "lib", "cmake", "Opus")
	stale := filepath.Join(exportDir, "OpusTargets-noconfig.cmake")
	testsupport.WriteFileString(t, stale, "# leftover from another build\n")

	// A rebuilt tree produces a different main export file.
	testsupport.WriteFileString(t, filepath.Join(tree, "exports", "OpusTargets.cmake"), "# Opus export targets (new build dir)\n")

	result, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected stale export removed, stat err=%v", err)
	}
	main, err := os.ReadFile(filepath.Join(exportDir, "OpusTargets.cmake"))
	if err != nil {
		t.Fatalf("read main export: %v", err)
	}
	if string(main) != "# Opus export targets (new build dir)\n" {
		t.Fatalf("expected main export replaced, got %q", main)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "OpusTargets-release.cmake")); err != nil {
		t.Fatalf("expected per-config export reinstated: %v", err)
	}
	// Main export and the swept per-config file were rewritten.
	if result.InstalledCount != 2 {
		t.Fatalf("expected 2 reinstalls after sweep, got %d", result.InstalledCount)
	}
}

func TestRunReportsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, false)

	var updates []install.Progress
	_, err := engine.Run(context.Background(), install.Request{
		Plan:      p,
		BuildTree: tree,
		OnProgress: func(update install.Progress) {
			updates = append(updates, update)
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(updates) != 10 {
		t.Fatalf("expected start and finish updates for 5 files, got %d", len(updates))
	}
	if updates[0].Outcome != "" {
		t.Fatalf("expected first update to be a start event, got %q", updates[0].Outcome)
	}
	last := updates[len(updates)-1]
	if last.Outcome != install.OutcomeInstalled {
		t.Fatalf("expected final outcome installed, got %q", last.Outcome)
	}
	if last.Percent != 100 {
		t.Fatalf("expected final percent 100, got %f", last.Percent)
	}
}

func TestRunRefusesDirectoryDestination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, false)

	conflict := filepath.Join(cfg.Install.Prefix, "lib", "libopus.a")
	if err := os.MkdirAll(conflict, 0o755); err != nil {
		t.Fatalf("mkdir conflict: %v", err)
	}

	_, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree})
	if err == nil {
		t.Fatal("expected error for directory destination")
	}
	if !strings.Contains(err.Error(), "directory") {
		t.Fatalf("expected directory conflict in error, got %v", err)
	}
}

func TestRunComponentSelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, true)

	result, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree, Component: "development"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.InstalledCount != 4 {
		t.Fatalf("expected 4 development files, got %d", result.InstalledCount)
	}
	wantManifest := filepath.Join(cfg.Install.Prefix, "install_manifest_development.txt")
	if result.ManifestPath != wantManifest {
		t.Fatalf("expected component manifest %s, got %s", wantManifest, result.ManifestPath)
	}
	if _, err := os.Stat(filepath.Join(cfg.Install.Prefix, "lib", "libopus.a")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected runtime files absent, stat err=%v", err)
	}
}

func TestRunSkipManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, false)

	result, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree, SkipManifest: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ManifestPath != "" {
		t.Fatalf("expected no manifest, got %s", result.ManifestPath)
	}
	if _, err := os.Stat(filepath.Join(cfg.Install.Prefix, "install_manifest.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected manifest file absent, stat err=%v", err)
	}
}

func TestRunRecordMapsResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := install.New(cfg, logging.NewNop())
	tree, p := writeBuildTree(t, false)

	result, err := engine.Run(context.Background(), install.Request{Plan: p, BuildTree: tree})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	run, files := install.RunRecord(result, 42)
	if run.ID != result.RunID || run.JobID != 42 {
		t.Fatalf("unexpected run identity: %#v", run)
	}
	if run.Status != registry.RunStatusCompleted {
		t.Fatalf("expected completed status, got %s", run.Status)
	}
	if run.InstalledCount != result.InstalledCount || run.TotalBytes != result.TotalBytes {
		t.Fatalf("counts not carried over: %#v", run)
	}
	if run.FinishedAt == nil || run.FinishedAt.Before(run.StartedAt) {
		t.Fatalf("unexpected run timestamps: started=%v finished=%v", run.StartedAt, run.FinishedAt)
	}
	if len(files) != len(result.Files) {
		t.Fatalf("expected %d file rows, got %d", len(result.Files), len(files))
	}
	first := files[0]
	if first.Path != result.Files[0].Path || first.SHA256 == "" {
		t.Fatalf("unexpected file row: %#v", first)
	}
	if first.Mode != uint32(0o644) {
		t.Fatalf("expected mode 0644 recorded, got %o", first.Mode)
	}
	if first.Action != install.OutcomeInstalled {
		t.Fatalf("expected installed action, got %s", first.Action)
	}
}
