// Package config loads, normalizes, and validates monad configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// MONAD_BIND and MONAD_LOG_LEVEL. The Config type centralizes every knob the
// daemon and CLI need: which run mode to use, how often the idle loop polls,
// where the status service binds, and where logs and runtime state live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical modes and log formats, and clear validation
// errors.
package config
