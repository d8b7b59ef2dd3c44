// Package manifest reads and writes the install manifest: the text file at
// the prefix root listing every installed path, one absolute path per line,
// in install order.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stagehand/internal/textutil"
)

const baseName = "install_manifest"

// FileName returns the manifest file name, carrying the component when one
// was selected.
func FileName(component string) string {
	token := textutil.SanitizeToken(component)
	if token == "" {
		return baseName + ".txt"
	}
	return baseName + "_" + token + ".txt"
}

// Path returns the manifest location for a prefix and component selection.
func Path(prefix, component string) string {
	return filepath.Join(prefix, FileName(component))
}

// Write records installed paths, newline-terminated, in the order given.
// Re-running an identical install regenerates an identical file.
func Write(path string, installed []string) error {
	var b strings.Builder
	for _, line := range installed {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Read parses a manifest back into its recorded paths, skipping blank
// lines.
func Read(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	return paths, nil
}
