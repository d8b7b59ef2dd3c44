package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// CopyFileVerified streams src to dst with SHA256 + size integrity
// verification and sets mode on dst. Removes dst on mismatch. Returns the
// byte count and hex digest of the copied content.
func CopyFileVerified(src, dst string, mode os.FileMode) (int64, string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, "", fmt.Errorf("stat source: %w", err)
	}

	written, srcSum, dstSum, err := hashingCopy(src, dst, mode)
	if err != nil {
		return 0, "", err
	}

	switch {
	case written != info.Size():
		_ = os.Remove(dst)
		return 0, "", fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	case !bytes.Equal(srcSum, dstSum):
		_ = os.Remove(dst)
		return 0, "", fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	// OpenFile only applies mode on create; force it for overwrites.
	if err := os.Chmod(dst, mode); err != nil {
		return 0, "", fmt.Errorf("chmod destination: %w", err)
	}
	return written, hex.EncodeToString(srcSum), nil
}

// hashingCopy copies src to dst while hashing both sides of the stream, so
// the caller can compare what was read against what was written.
func hashingCopy(src, dst string, mode os.FileMode) (int64, []byte, []byte, error) {
	r, err := os.Open(src)
	if err != nil {
		return 0, nil, nil, err
	}
	defer r.Close()

	w, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = w.Close() }()

	srcHasher, dstHasher := sha256.New(), sha256.New()
	written, err := io.Copy(io.MultiWriter(w, dstHasher), io.TeeReader(r, srcHasher))
	if err != nil {
		return 0, nil, nil, err
	}
	if err := w.Close(); err != nil {
		return 0, nil, nil, err
	}
	return written, srcHasher.Sum(nil), dstHasher.Sum(nil), nil
}

// HashFile returns the SHA256 hex digest and size of a file.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
