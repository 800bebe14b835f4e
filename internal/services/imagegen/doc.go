// Package imagegen renders cover images through an optional HTTP backend.
// When the backend is disabled or down the pipeline degrades to a
// placeholder instead of failing the job.
package imagegen
