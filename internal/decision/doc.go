// Package decision manages the human-in-the-loop juncture of the pipeline:
// explicit choice resolution and the timeout sweep that applies the
// configured fallback policy to unanswered decisions.
package decision
