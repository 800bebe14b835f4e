// Package config loads, normalizes, and validates Inkwell configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// INKWELL_TEXTGEN_API_KEY. The Config type centralizes every knob the daemon
// and CLI need: directories, retry and heartbeat policy, decision expiry,
// collaborator credentials, and progress channel sizing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
