// Package daemon wires the job store, workflow manager, decision resolver,
// and progress hub into a single-instance background process. It owns the
// lock file, the HTTP API, and the periodic heartbeat events that let stream
// consumers distinguish a slow stage from a dead daemon.
package daemon
