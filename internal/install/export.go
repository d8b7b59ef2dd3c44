package install

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sweepStaleExports removes per-configuration siblings of a CMake export
// file that is about to be replaced with different content. For a target
// named OpusTargets.cmake this deletes OpusTargets-*.cmake in the same
// directory, mirroring how generated install scripts clear exports that
// were produced from another build directory.
func sweepStaleExports(targetPath string) ([]string, error) {
	dir := filepath.Dir(targetPath)
	name := filepath.Base(targetPath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return nil, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, stem+"-*.cmake"))
	if err != nil {
		return nil, fmt.Errorf("glob stale exports: %w", err)
	}

	var removed []string
	for _, stale := range matches {
		if err := os.Remove(stale); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("remove stale export %s: %w", stale, err)
		}
		removed = append(removed, stale)
	}
	return removed, nil
}
