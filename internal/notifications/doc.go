// Package notifications pushes install lifecycle events to operators.
//
// The ntfy-backed Service publishes to the topic named in config.toml and
// becomes a no-op when no topic is set, so callers never branch on whether
// notifications are enabled. Event kinds cover the install milestones, and a
// configurable dedup window drops repeats so a flapping job cannot flood the
// channel.
//
// Workflow code depends only on the Service interface; alternative
// transports slot in behind it.
package notifications
