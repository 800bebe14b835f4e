// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal job models into transport-friendly DTOs
// so clients never couple to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (jobs.Status, jobs.Stage) are
// exposed as lowercase strings, with job statuses collapsed onto the
// client-facing stage vocabulary via StageKey. Timestamps use RFC3339 with
// milliseconds.
package api
