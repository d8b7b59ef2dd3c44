// Package daemon coordinates the long-running stagehand process.
//
// It wires configuration, the job registry, the workflow manager, and the
// drop directory monitor into a single lifecycle with flock-based locking to
// prevent multiple instances. On startup the daemon runs preflight checks and
// resets jobs stranded in processing states by a previous run. It exposes the
// registry maintenance and install submission operations the IPC server
// forwards requests to.
//
// Keep orchestration logic here: individual pipeline stages live in their own
// packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
