// Package registry persists stagehand state in SQLite: the daemon job
// queue and the history of install runs with their recorded files.
//
// One database lives under the state directory. Jobs move through a fixed
// status lifecycle (pending through completed, with failed and review as
// terminal states); runs record what an install actually put on disk so
// verify, uninstall, and history can work from ground truth.
//
// The store retries on SQLITE_BUSY with short backoff so the daemon and
// CLI can share the database.
package registry
