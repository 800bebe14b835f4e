// Package jobs persists generation jobs, stage results, and pending
// decisions in SQLite. The store is the single source of truth for job
// state; workflow components coordinate exclusively through status
// transitions recorded here.
package jobs
