// Package preflight provides readiness checks for the directories and the
// registry database stagehand depends on.
//
// The daemon runs RunAll once at startup and logs anything failing; the
// CLI status command renders the same results for the operator. Checks
// never mutate state except for CheckRegistry, which opens the database
// the same way the daemon would.
package preflight
