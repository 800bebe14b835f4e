// Package textgen talks to an OpenAI-compatible chat completion backend and
// normalizes its failures onto the service error taxonomy.
package textgen
