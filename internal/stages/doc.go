// Package stages implements the daemon workflow stage handlers.
//
// A queued build tree moves through four handlers: Validator checks the
// install plan and source artifacts without touching disk, Stager rehearses
// the install into a scratch root under the staging directory, Installer
// performs the real install into the configured prefix and records the run
// in the registry, and Verifier replays the recorded run against the
// installed tree before the job completes.
//
// All handlers satisfy stage.Handler; the workflow manager owns status
// transitions and failure classification.
package stages
