// Package workflow advances registry jobs through the configured install
// stages.
//
// The Manager polls the job queue, reclaims stale work via heartbeats, and
// feeds jobs into registered stage handlers (validator, stager, installer,
// verifier) while capturing progress and failure metadata. It also
// aggregates queue stats, calls stage health checks, and emits
// notifications when installs complete or fail.
//
// Jobs move through one lane: pending trees are validated, rehearsed into
// the staging directory, installed into the prefix, and verified against
// the recorded run. Failure classification decides whether a job lands in
// failed (transient trouble, retryable) or review (plan or tree problems
// needing an operator).
//
// Add new lifecycle stages by extending StageSet, updating the registry
// status enums, and teaching the manager how to transition jobs; this
// package is the authoritative home for that coordination logic.
package workflow
