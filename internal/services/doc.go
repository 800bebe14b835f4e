// Package services defines shared utilities consumed by the pipeline stage
// handlers and external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, owner IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent retry decisions and terminal error kinds.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
