package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Workflow contains timing and retry configuration for the job manager.
type Workflow struct {
	QueuePollInterval      int `toml:"queue_poll_interval"`
	ErrorRetryInterval     int `toml:"error_retry_interval"`
	HeartbeatInterval      int `toml:"heartbeat_interval"`
	HeartbeatTimeout       int `toml:"heartbeat_timeout"`
	StageRetryLimit        int `toml:"stage_retry_limit"`
	RetryBackoffSeconds    int `toml:"retry_backoff_seconds"`
	RetryBackoffMaxSeconds int `toml:"retry_backoff_max_seconds"`
	MaxActiveJobs          int `toml:"max_active_jobs"`
}

// Decisions contains expiry and fallback policy for pending decisions.
type Decisions struct {
	TimeoutMinutes       int    `toml:"timeout_minutes"`
	SweepIntervalSeconds int    `toml:"sweep_interval_seconds"`
	TitleFallback        string `toml:"title_fallback"`
}

// TextGen contains connection settings for the text-generation backend.
type TextGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ImageGen contains connection settings for the image-generation backend.
type ImageGen struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Discovery contains configuration for the title discovery stage.
type Discovery struct {
	CandidateCount int `toml:"candidate_count"`
}

// Research maps research depth preferences to insight budgets.
type Research struct {
	LightBudget  int `toml:"light_budget"`
	MediumBudget int `toml:"medium_budget"`
	DeepBudget   int `toml:"deep_budget"`
}

// Progress contains configuration for the live progress channel.
type Progress struct {
	BufferSize       int `toml:"buffer_size"`
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration for the inkwell daemon and CLI.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workflow      Workflow      `toml:"workflow"`
	Decisions     Decisions     `toml:"decisions"`
	TextGen       TextGen       `toml:"textgen"`
	ImageGen      ImageGen      `toml:"imagegen"`
	Discovery     Discovery     `toml:"discovery"`
	Research      Research      `toml:"research"`
	Progress      Progress      `toml:"progress"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the embedded sample configuration to the given path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/inkwell/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("inkwell.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ArtifactDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the path of the daemon IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "inkwelld.sock")
}

// InsightBudget resolves a research depth preference to its insight budget.
// Unknown depths resolve to the light budget.
func (c *Config) InsightBudget(depth string) int {
	switch strings.ToLower(strings.TrimSpace(depth)) {
	case "deep":
		return c.Research.DeepBudget
	case "medium":
		return c.Research.MediumBudget
	default:
		return c.Research.LightBudget
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
