package install_test

import (
	"path/filepath"
	"testing"

	"stagehand/internal/plan"
	"stagehand/internal/testsupport"
)

const opusPlanTOML = `default_config = "Release"

[project]
name = "opus"
version = "1.4"

[[artifact]]
source = "libopus.a"
kind = "static-lib"

[[artifact]]
source = "include/opus.h"
kind = "header"

[[artifact]]
source = "opus.pc"
kind = "pkgconfig"

[[artifact]]
source = "exports/OpusTargets.cmake"
kind = "cmake-export"

[[artifact]]
source = "exports/OpusTargets-@CONFIG@.cmake"
kind = "cmake-export"

[[artifact]]
source = "tools/opus_demo"
kind = "executable"
configs = ["Debug"]

[[artifact]]
source = "extras/notes.txt"
kind = "data"
optional = true
`

const opusPC = "prefix=/build/throwaway\n" +
	"exec_prefix=${prefix}\n" +
	"libdir=${exec_prefix}/lib\n" +
	"includedir=${prefix}/include\n" +
	"\n" +
	"Name: Opus\n" +
	"Description: Opus IETF audio codec\n" +
	"Version: 1.4\n" +
	"Libs: -L${libdir} -lopus\n" +
	"Cflags: -I${includedir}/opus\n"

// writeBuildTree lays out a minimal opus build tree with a plan file and
// returns the tree root plus the loaded plan.
func writeBuildTree(t *testing.T, withOptional bool) (string, *plan.Plan) {
	t.Helper()

	tree := t.TempDir()
	testsupport.WriteFileString(t, filepath.Join(tree, "install.toml"), opusPlanTOML)
	testsupport.WriteFileString(t, filepath.Join(tree, "libopus.a"), "!<arch>\nopus static archive\n")
	testsupport.WriteFileString(t, filepath.Join(tree, "include", "opus.h"), "#define OPUS_H\n")
	testsupport.WriteFileString(t, filepath.Join(tree, "opus.pc"), opusPC)
	testsupport.WriteFileString(t, filepath.Join(tree, "exports", "OpusTargets.cmake"), "# Opus export targets\n")
	testsupport.WriteFileString(t, filepath.Join(tree, "exports", "OpusTargets-release.cmake"), "# Release import config\n")
	if withOptional {
		testsupport.WriteFileString(t, filepath.Join(tree, "extras", "notes.txt"), "release notes\n")
	}

	p, err := plan.Load(filepath.Join(tree, "install.toml"))
	if err != nil {
		t.Fatalf("plan.Load: %v", err)
	}
	return tree, p
}
