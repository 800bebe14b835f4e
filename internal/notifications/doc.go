// Package notifications pushes job lifecycle updates to an optional ntfy
// topic. Without a configured topic every notification is a no-op.
package notifications
