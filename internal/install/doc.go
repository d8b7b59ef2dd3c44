// Package install resolves install plans into ordered file actions and
// executes them against a prefix: verified copies, up-to-date detection,
// manifest writing, stale CMake export cleanup, verification, and
// manifest-driven removal.
package install
