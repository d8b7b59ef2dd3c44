package install

import (
	"fmt"
	"os"
	"time"

	"stagehand/internal/fileutil"
	"stagehand/internal/registry"
)

// Issue describes one verification finding for a single path.
type Issue struct {
	Path    string
	Problem string
}

// Report carries the outcome of an installed-tree verification.
type Report struct {
	Prefix    string
	RunID     string
	CheckedAt time.Time
	Total     int
	OK        int
	Issues    []Issue
}

// Clean reports whether every checked file matched its record.
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// VerifyRun compares recorded run files against the filesystem, checking
// existence, size, content hash, and mode.
func VerifyRun(run *registry.Run, files []*registry.RunFile) *Report {
	report := &Report{CheckedAt: time.Now().UTC(), Total: len(files)}
	if run != nil {
		report.Prefix = run.Prefix
		report.RunID = run.ID
	}

	for _, file := range files {
		info, err := os.Stat(file.Path)
		if err != nil {
			report.Issues = append(report.Issues, Issue{Path: file.Path, Problem: "missing"})
			continue
		}
		if info.IsDir() {
			report.Issues = append(report.Issues, Issue{Path: file.Path, Problem: "replaced by a directory"})
			continue
		}
		if info.Size() != file.Size {
			report.Issues = append(report.Issues, Issue{
				Path:    file.Path,
				Problem: fmt.Sprintf("size %d, recorded %d", info.Size(), file.Size),
			})
			continue
		}
		if file.SHA256 != "" {
			sum, _, err := fileutil.HashFile(file.Path)
			if err != nil {
				report.Issues = append(report.Issues, Issue{Path: file.Path, Problem: fmt.Sprintf("unreadable: %v", err)})
				continue
			}
			if sum != file.SHA256 {
				report.Issues = append(report.Issues, Issue{Path: file.Path, Problem: "content hash mismatch"})
				continue
			}
		}
		if file.Mode != 0 && info.Mode().Perm() != os.FileMode(file.Mode).Perm() {
			report.Issues = append(report.Issues, Issue{
				Path:    file.Path,
				Problem: fmt.Sprintf("mode %s, recorded %s", info.Mode().Perm(), os.FileMode(file.Mode).Perm()),
			})
			continue
		}
		report.OK++
	}
	return report
}

// VerifyManifest checks that every manifest path still exists as a file.
// Manifests carry no sizes or hashes, so this is an existence check only.
func VerifyManifest(prefix string, paths []string) *Report {
	report := &Report{Prefix: prefix, CheckedAt: time.Now().UTC(), Total: len(paths)}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			report.Issues = append(report.Issues, Issue{Path: path, Problem: "missing"})
			continue
		}
		if info.IsDir() {
			report.Issues = append(report.Issues, Issue{Path: path, Problem: "replaced by a directory"})
			continue
		}
		report.OK++
	}
	return report
}
