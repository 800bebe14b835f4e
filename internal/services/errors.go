package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify stage and collaborator failures. The
// workflow manager keys its retry and terminal-status decisions off these.
var (
	// ErrValidation marks malformed client input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrRecoverable marks transient collaborator failures such as timeouts
	// and rate limits. Retried with backoff up to the configured cap.
	ErrRecoverable = errors.New("recoverable error")
	// ErrFatal marks malformed stage output or other permanent failures.
	ErrFatal = errors.New("fatal error")
	// ErrConfiguration marks missing or invalid daemon configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups for jobs or decisions that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrDecisionExpired marks resolution attempts against an expired decision.
	ErrDecisionExpired = errors.New("decision expired")
	// ErrAlreadyResolved marks a second resolution attempt on a decision.
	ErrAlreadyResolved = errors.New("decision already resolved")
	// ErrInvalidChoice marks a resolution value outside the offered options.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrDecisionTimeout marks jobs failed because a decision expired without
	// a fallback policy.
	ErrDecisionTimeout = errors.New("decision timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrRecoverable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the machine-readable error kind recorded on failed jobs and
// surfaced through the API.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRecoverable):
		return "recoverable"
	case errors.Is(err, ErrFatal):
		return "fatal"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDecisionTimeout):
		return "decision_timeout"
	case errors.Is(err, ErrDecisionExpired):
		return "decision_expired"
	case errors.Is(err, ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, ErrInvalidChoice):
		return "invalid_choice"
	default:
		return "internal"
	}
}

// IsRetryable reports whether the workflow manager may retry the failed stage.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
