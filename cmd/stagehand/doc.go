// Package main hosts the stagehand CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into direct
// install-engine runs, registry queries, IPC calls against the daemon, log
// tailing, and configuration scaffolding. It centralizes configuration
// resolution and socket discovery so subcommands can focus on user
// experience instead of wiring.
//
// New behavior belongs in the internal packages. Commands here stay thin
// adapters that bind flags, call into those packages, and render whatever
// comes back, so the same operations remain reachable from the daemon and
// from tests without a terminal attached.
package main
