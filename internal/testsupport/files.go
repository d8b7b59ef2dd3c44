package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFileSized fills the target path with size bytes of a fixed pattern,
// creating parent directories first. A size <= 0 still writes one byte so
// the file exists with content.
func WriteFileSized(t testing.TB, path string, size int64) {
	t.Helper()

	size = max(size, 1)
	mustMkdirParent(t, path)
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file %s: %v", path, err)
	}
	defer out.Close()

	chunk := bytes.Repeat([]byte{0x42}, 32*1024)
	for written := int64(0); written < size; {
		n := min(size-written, int64(len(chunk)))
		if _, err := out.Write(chunk[:n]); err != nil {
			t.Fatalf("fill %s: %v", path, err)
		}
		written += n
	}
}

// WriteFileString writes literal contents to the target path, creating
// parent directories as needed.
func WriteFileString(t testing.TB, path, contents string) {
	t.Helper()

	mustMkdirParent(t, path)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

func mustMkdirParent(t testing.TB, path string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}
