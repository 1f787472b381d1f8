// Package logging assembles structured slog loggers and formatting helpers used
// across the monad daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and can tee every record into a per-run JSON log file next to the
// console stream. Lifecycle code tags records with a run ID and standardized
// keys (component, event_type, error_hint) so each daemon run can be followed
// end to end. The package also provides a no-op logger for tests and wiring
// code that cannot fail.
package logging
