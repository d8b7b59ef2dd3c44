// Package logging builds the slog loggers used throughout stagehand.
//
// New assembles console or JSON handlers from explicit options, component
// loggers pin a component attribute, and the context helpers stamp job, run,
// stage, and correlation IDs onto every line logged under an enriched
// context. NewNop returns a discard logger for tests and optional wiring,
// and CleanupOldLogs prunes per-job log files past the retention window.
//
// New code should obtain loggers from these constructors rather than
// assembling slog handlers by hand so daemon and CLI output stay uniform.
package logging
