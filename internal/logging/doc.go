// Package logging builds slog loggers for the daemon and CLI and centralizes
// the structured field vocabulary used across components.
//
// It offers console and JSON output, optional log-file duplication under the
// configured log directory, attr helpers, and WithContext which stamps job,
// owner, stage, and correlation identifiers pulled from services context.
package logging
