// Package services holds the cross-cutting helpers stage handlers and the
// install engine share: context accessors that stamp job, run, stage, and
// correlation IDs for logging, plus the error taxonomy (sentinel markers,
// Wrap, FailureStatus) that decides whether a failed job lands in failed or
// needs-review.
//
// Wiring new stage logic through these helpers keeps error handling and
// observability uniform across the pipeline.
package services
