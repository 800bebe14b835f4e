// Package progress fans out per-job progress events to live subscribers.
// Each job keeps a bounded replay buffer so clients that connect or
// reconnect mid-run receive the history before live events.
package progress
