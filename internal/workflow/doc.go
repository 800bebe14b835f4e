// Package workflow drives jobs through the fixed generation pipeline. A
// dispatcher claims jobs at stage boundaries, per-job workers execute stage
// handlers with heartbeats and bounded retries, and decision junctures park
// jobs until resolved.
package workflow
