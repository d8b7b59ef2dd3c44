// Package config owns every knob the daemon and CLI read: TOML loading,
// defaults, tilde and environment expansion (STAGEHAND_PREFIX, DESTDIR),
// normalization, and validation with errors that name the offending key.
//
// Code elsewhere never reads config files or environment variables directly;
// it receives a *Config that has already been normalized, so paths are
// absolute and enums are canonical by the time they are used.
package config
