package config

const (
	defaultDataDir                = "~/.local/share/inkwell"
	defaultLogDir                 = "~/.local/share/inkwell/logs"
	defaultArtifactDir            = "~/.local/share/inkwell/artifacts"
	defaultAPIBind                = "127.0.0.1:7319"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultQueuePollInterval      = 2
	defaultErrorRetryInterval     = 5
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 120
	defaultStageRetryLimit        = 3
	defaultRetryBackoffSeconds    = 2
	defaultRetryBackoffMaxSeconds = 30
	defaultMaxActiveJobs          = 8
	defaultDecisionTimeoutMinutes = 15
	defaultDecisionSweepSeconds   = 30
	defaultTitleFallback          = FallbackFirstOption
	defaultTextGenBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultTextGenModel           = "google/gemini-3-flash-preview"
	defaultTextGenTimeoutSeconds  = 60
	defaultImageGenTimeoutSeconds = 120
	defaultCandidateCount         = 5
	defaultLightBudget            = 3
	defaultMediumBudget           = 6
	defaultDeepBudget             = 10
	defaultProgressBufferSize     = 256
	defaultProgressHeartbeat      = 15
	defaultNotifyRequestTimeout   = 10
)

// Fallback policies accepted by decisions.title_fallback.
const (
	FallbackFirstOption = "first_option"
	FallbackFail        = "fail"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			ArtifactDir: defaultArtifactDir,
			APIBind:     defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollInterval:      defaultQueuePollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			HeartbeatInterval:      defaultHeartbeatInterval,
			HeartbeatTimeout:       defaultHeartbeatTimeout,
			StageRetryLimit:        defaultStageRetryLimit,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			RetryBackoffMaxSeconds: defaultRetryBackoffMaxSeconds,
			MaxActiveJobs:          defaultMaxActiveJobs,
		},
		Decisions: Decisions{
			TimeoutMinutes:       defaultDecisionTimeoutMinutes,
			SweepIntervalSeconds: defaultDecisionSweepSeconds,
			TitleFallback:        defaultTitleFallback,
		},
		TextGen: TextGen{
			BaseURL:        defaultTextGenBaseURL,
			Model:          defaultTextGenModel,
			TimeoutSeconds: defaultTextGenTimeoutSeconds,
		},
		ImageGen: ImageGen{
			TimeoutSeconds: defaultImageGenTimeoutSeconds,
		},
		Discovery: Discovery{
			CandidateCount: defaultCandidateCount,
		},
		Research: Research{
			LightBudget:  defaultLightBudget,
			MediumBudget: defaultMediumBudget,
			DeepBudget:   defaultDeepBudget,
		},
		Progress: Progress{
			BufferSize:       defaultProgressBufferSize,
			HeartbeatSeconds: defaultProgressHeartbeat,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
