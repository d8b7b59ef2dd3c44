package registry

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StagingRoot returns the per-job staging directory rooted at base. If a
// drop fingerprint is available it is used; otherwise it falls back to
// job-{ID} to avoid collisions.
func (j Job) StagingRoot(base string) string {
	root := strings.TrimSpace(base)
	if root == "" {
		return ""
	}
	seg := strings.TrimSpace(j.Fingerprint)
	if seg == "" {
		seg = fmt.Sprintf("job-%d", j.ID)
	}
	return filepath.Join(root, cleanSegment(seg))
}

func cleanSegment(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	seg := strings.Trim(b.String(), "-_.")
	if seg == "" {
		return "job"
	}
	return seg
}
