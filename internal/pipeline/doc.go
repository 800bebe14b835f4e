// Package pipeline implements the seven fixed stage handlers that take a
// job from preference intake to a finished artifact bundle.
package pipeline
