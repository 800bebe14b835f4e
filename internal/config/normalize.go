package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeDecisions()
	c.normalizeTextGen()
	c.normalizeImageGen()
	c.normalizePipeline()
	c.normalizeProgress()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("INKWELL_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.StageRetryLimit <= 0 {
		c.Workflow.StageRetryLimit = defaultStageRetryLimit
	}
	if c.Workflow.RetryBackoffSeconds <= 0 {
		c.Workflow.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Workflow.RetryBackoffMaxSeconds <= 0 {
		c.Workflow.RetryBackoffMaxSeconds = defaultRetryBackoffMaxSeconds
	}
	if c.Workflow.MaxActiveJobs <= 0 {
		c.Workflow.MaxActiveJobs = defaultMaxActiveJobs
	}
}

func (c *Config) normalizeDecisions() {
	if c.Decisions.TimeoutMinutes <= 0 {
		c.Decisions.TimeoutMinutes = defaultDecisionTimeoutMinutes
	}
	if c.Decisions.SweepIntervalSeconds <= 0 {
		c.Decisions.SweepIntervalSeconds = defaultDecisionSweepSeconds
	}
	c.Decisions.TitleFallback = strings.ToLower(strings.TrimSpace(c.Decisions.TitleFallback))
	if c.Decisions.TitleFallback == "" {
		c.Decisions.TitleFallback = defaultTitleFallback
	}
}

func (c *Config) normalizeTextGen() {
	if c.TextGen.APIKey == "" {
		if value, ok := os.LookupEnv("INKWELL_TEXTGEN_API_KEY"); ok {
			c.TextGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.TextGen.BaseURL = strings.TrimSpace(c.TextGen.BaseURL)
	if c.TextGen.BaseURL == "" {
		c.TextGen.BaseURL = defaultTextGenBaseURL
	}
	c.TextGen.Model = strings.TrimSpace(c.TextGen.Model)
	if c.TextGen.Model == "" {
		c.TextGen.Model = defaultTextGenModel
	}
	if c.TextGen.TimeoutSeconds <= 0 {
		c.TextGen.TimeoutSeconds = defaultTextGenTimeoutSeconds
	}
}

func (c *Config) normalizeImageGen() {
	if c.ImageGen.APIKey == "" {
		if value, ok := os.LookupEnv("INKWELL_IMAGEGEN_API_KEY"); ok {
			c.ImageGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.ImageGen.BaseURL = strings.TrimSpace(c.ImageGen.BaseURL)
	if c.ImageGen.TimeoutSeconds <= 0 {
		c.ImageGen.TimeoutSeconds = defaultImageGenTimeoutSeconds
	}
}

func (c *Config) normalizePipeline() {
	if c.Discovery.CandidateCount <= 0 {
		c.Discovery.CandidateCount = defaultCandidateCount
	}
	if c.Research.LightBudget <= 0 {
		c.Research.LightBudget = defaultLightBudget
	}
	if c.Research.MediumBudget <= 0 {
		c.Research.MediumBudget = defaultMediumBudget
	}
	if c.Research.DeepBudget <= 0 {
		c.Research.DeepBudget = defaultDeepBudget
	}
}

func (c *Config) normalizeProgress() {
	if c.Progress.BufferSize <= 0 {
		c.Progress.BufferSize = defaultProgressBufferSize
	}
	if c.Progress.HeartbeatSeconds <= 0 {
		c.Progress.HeartbeatSeconds = defaultProgressHeartbeat
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
