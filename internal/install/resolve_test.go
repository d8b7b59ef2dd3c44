package install_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stagehand/internal/install"
	"stagehand/internal/plan"
	"stagehand/internal/services"
	"stagehand/internal/testsupport"
)

func TestResolveKeepsPlanOrder(t *testing.T) {
	tree, p := writeBuildTree(t, true)

	actions, skipped, err := install.Resolve(p, tree, "/usr/local", plan.Release, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	wantTargets := []string{
		"lib/libopus.a",
		"include/opus/opus.h",
		"lib/pkgconfig/opus.pc",
		"lib/cmake/Opus/OpusTargets.cmake",
		"lib/cmake/Opus/OpusTargets-release.cmake",
		"share/notes.txt",
	}
	if len(actions) != len(wantTargets) {
		t.Fatalf("expected %d actions, got %d", len(wantTargets), len(actions))
	}
	for i, want := range wantTargets {
		if actions[i].RelTarget != want {
			t.Fatalf("action %d: expected %s, got %s", i, want, actions[i].RelTarget)
		}
	}
	if actions[0].Mode.Perm() != 0o644 {
		t.Fatalf("expected static lib mode 0644, got %o", actions[0].Mode.Perm())
	}
	if actions[0].Target != filepath.Join("/usr/local", "lib", "libopus.a") {
		t.Fatalf("unexpected absolute target %s", actions[0].Target)
	}

	if len(skipped) != 1 {
		t.Fatalf("expected 1 skipped entry, got %d", len(skipped))
	}
	if skipped[0].Source != "tools/opus_demo" || !strings.Contains(skipped[0].Reason, "Release") {
		t.Fatalf("unexpected skip record: %#v", skipped[0])
	}
}

func TestResolveDebugSelectsPerConfigEntries(t *testing.T) {
	tree, p := writeBuildTree(t, false)
	testsupport.WriteFileString(t, filepath.Join(tree, "tools", "opus_demo"), "#!/bin/sh\n")
	testsupport.WriteFileString(t, filepath.Join(tree, "exports", "OpusTargets-debug.cmake"), "# Debug import config\n")

	actions, _, err := install.Resolve(p, tree, "/usr/local", plan.Debug, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	byTarget := make(map[string]install.Action, len(actions))
	for _, action := range actions {
		byTarget[action.RelTarget] = action
	}
	demo, ok := byTarget["bin/opus_demo"]
	if !ok {
		t.Fatal("expected opus_demo in debug resolution")
	}
	if demo.Mode.Perm() != 0o755 {
		t.Fatalf("expected executable mode 0755, got %o", demo.Mode.Perm())
	}
	if _, ok := byTarget["lib/cmake/Opus/OpusTargets-debug.cmake"]; !ok {
		t.Fatal("expected per-config export expanded for debug")
	}
}

func TestResolveComponentFilter(t *testing.T) {
	tree, p := writeBuildTree(t, true)

	actions, skipped, err := install.Resolve(p, tree, "/usr/local", plan.Release, "development")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(actions) != 4 {
		t.Fatalf("expected 4 development actions, got %d", len(actions))
	}
	for _, action := range actions {
		if action.Component != "development" {
			t.Fatalf("unexpected component %q on %s", action.Component, action.RelTarget)
		}
	}
	if len(skipped) != 3 {
		t.Fatalf("expected 3 skipped entries, got %d", len(skipped))
	}
}

func TestResolveUnknownComponent(t *testing.T) {
	tree, p := writeBuildTree(t, true)

	_, _, err := install.Resolve(p, tree, "/usr/local", plan.Release, "docs")
	if err == nil {
		t.Fatal("expected error for unknown component")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "development") || !strings.Contains(err.Error(), "runtime") {
		t.Fatalf("expected available components listed, got %v", err)
	}
}

func TestResolveAbortsOnMissingSource(t *testing.T) {
	tree, p := writeBuildTree(t, true)
	if err := os.Remove(filepath.Join(tree, "libopus.a")); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	actions, _, err := install.Resolve(p, tree, "/usr/local", plan.Release, "")
	if err == nil {
		t.Fatal("expected error for missing non-optional source")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "libopus.a") {
		t.Fatalf("expected path in error, got %v", err)
	}
	if actions != nil {
		t.Fatalf("expected no actions on abort, got %d", len(actions))
	}
}

func TestResolveSkipsMissingOptional(t *testing.T) {
	tree, p := writeBuildTree(t, false)

	actions, skipped, err := install.Resolve(p, tree, "/usr/local", plan.Release, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(actions) != 5 {
		t.Fatalf("expected 5 actions without optional file, got %d", len(actions))
	}
	var found bool
	for _, skip := range skipped {
		if skip.Source == "extras/notes.txt" && strings.Contains(skip.Reason, "optional") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected optional skip recorded, got %#v", skipped)
	}
}

func TestResolveRejectsDuplicateExpandedTargets(t *testing.T) {
	tree := t.TempDir()
	testsupport.WriteFileString(t, filepath.Join(tree, "install.toml"), `[project]
name = "opus"
version = "1.4"

[[artifact]]
source = "exports/OpusTargets-@CONFIG@.cmake"
kind = "cmake-export"

[[artifact]]
source = "prebuilt/OpusTargets-release.cmake"
kind = "cmake-export"
`)
	testsupport.WriteFileString(t, filepath.Join(tree, "exports", "OpusTargets-release.cmake"), "a\n")
	testsupport.WriteFileString(t, filepath.Join(tree, "prebuilt", "OpusTargets-release.cmake"), "b\n")

	p, err := plan.Load(filepath.Join(tree, "install.toml"))
	if err != nil {
		t.Fatalf("plan.Load: %v", err)
	}

	_, _, err = install.Resolve(p, tree, "/usr/local", plan.Release, "")
	if err == nil {
		t.Fatal("expected duplicate target error after expansion")
	}
	if !strings.Contains(err.Error(), "OpusTargets-release.cmake") {
		t.Fatalf("expected colliding target in error, got %v", err)
	}
}
