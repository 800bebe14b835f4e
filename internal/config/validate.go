package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration invariants after normalization.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDecisions(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		return fmt.Errorf("paths.artifact_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return fmt.Errorf("workflow.heartbeat_timeout (%d) must exceed workflow.heartbeat_interval (%d)",
			c.Workflow.HeartbeatTimeout, c.Workflow.HeartbeatInterval)
	}
	if c.Workflow.RetryBackoffMaxSeconds < c.Workflow.RetryBackoffSeconds {
		return fmt.Errorf("workflow.retry_backoff_max_seconds (%d) must be at least workflow.retry_backoff_seconds (%d)",
			c.Workflow.RetryBackoffMaxSeconds, c.Workflow.RetryBackoffSeconds)
	}
	return nil
}

func (c *Config) validateDecisions() error {
	switch c.Decisions.TitleFallback {
	case FallbackFirstOption, FallbackFail:
		return nil
	default:
		return fmt.Errorf("decisions.title_fallback: unsupported value %q (expected %q or %q)",
			c.Decisions.TitleFallback, FallbackFirstOption, FallbackFail)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
