// Package config loads the daemon's on-disk configuration: a YAML file
// under the data root plus environment variable overrides, grounded on
// the teacher's internal/config package (single Config struct,
// Load/applyDefaults/applyEnvOverrides/validateConfig pipeline).
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aigent-dev/aigent/pkg/models"
)

// Config is the daemon's full on-disk configuration.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	SocketPath string           `yaml:"socket_path"`
	Logging    LoggingConfig    `yaml:"logging"`
	LLM        LLMConfig        `yaml:"llm"`
	Execution  models.ExecutionPolicy `yaml:"execution"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Sleep      SleepConfig      `yaml:"sleep"`
	Proactive  ProactiveConfig  `yaml:"proactive"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Tools      ToolsConfig      `yaml:"tools"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// LLMConfig configures the local/cloud provider router.
type LLMConfig struct {
	Local  LocalProviderConfig  `yaml:"local"`
	Cloud  CloudProviderConfig  `yaml:"cloud"`
}

// LocalProviderConfig configures the Ollama-backed local provider.
type LocalProviderConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url"` // overridden by OLLAMA_BASE_URL
	DefaultModel   string        `yaml:"default_model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Timeout        time.Duration `yaml:"timeout"`
}

// CloudProviderConfig configures the cloud-fallback provider.
type CloudProviderConfig struct {
	// Provider selects which cloud backend to build: "openrouter" (the
	// default, an OpenAI-compatible pass-through) or "anthropic" (a
	// direct Messages API client).
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key"` // overridden by OPENROUTER_API_KEY/ANTHROPIC_API_KEY
	BaseURL        string `yaml:"base_url"`
	DefaultModel   string `yaml:"default_model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// SchedulerConfig configures the background scheduler's windows and
// intervals, mirrored from internal/scheduler.Config's fields.
type SchedulerConfig struct {
	PassiveInterval      time.Duration `yaml:"passive_interval"`
	NightlyPollInterval  time.Duration `yaml:"nightly_poll_interval"`
	NightlyQuietWindow   ClockWindow   `yaml:"nightly_quiet_window"`
	NightlyMinGap        time.Duration `yaml:"nightly_min_gap"`
	ConversationQuietGap time.Duration `yaml:"conversation_quiet_gap"`
	ProactiveInterval    time.Duration `yaml:"proactive_interval"`
	ProactiveDND         ClockWindow   `yaml:"proactive_dnd"`
	ProactiveCooldown    time.Duration `yaml:"proactive_cooldown"`
}

// ClockWindow is an hour-of-day window, matching scheduler.Window's
// StartHour/EndHour shape (a window that wraps past midnight is
// expressed with StartHour > EndHour).
type ClockWindow struct {
	Timezone  string `yaml:"timezone"`
	StartHour int    `yaml:"start_hour"`
	EndHour   int    `yaml:"end_hour"`
}

// SleepConfig configures the consolidation pipeline's tunables.
type SleepConfig struct {
	ForgetEpisodicAfterDays int     `yaml:"forget_episodic_after_days"`
	ForgetMinConfidence     float64 `yaml:"forget_min_confidence"`
	MultiAgentBatchSize     int     `yaml:"multi_agent_batch_size"`
}

// ProactiveConfig configures the proactive task's message cooldown.
type ProactiveConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// TelegramConfig configures the optional Telegram chat-bot task.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"` // overridden by TELEGRAM_BOT_TOKEN
}

// ToolsConfig configures tool-execution-adjacent settings not already
// covered by models.ExecutionPolicy.
type ToolsConfig struct {
	ExtensionsDir string `yaml:"extensions_dir"` // WASM guest discovery root
	WebSearchKey  string `yaml:"web_search_key"` // overridden by BRAVE_API_KEY
}

// Load reads, expands, and validates the config file at path, applying
// environment overrides and defaults. A missing file yields a
// default-populated Config rather than an error, so a fresh install can
// run the onboarding wizard before any file exists.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		decoder := yaml.NewDecoder(strings.NewReader(expanded))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := decoder.Decode(new(struct{})); err != io.EOF {
			return nil, fmt.Errorf("parse config %s: expected a single YAML document", path)
		}
	case os.IsNotExist(err):
		// no file yet; defaults below populate a usable zero config
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			home = "."
		}
		cfg.DataDir = filepath.Join(home, ".aigent")
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = "/tmp/aigent.sock"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.LLM.Local.BaseURL == "" {
		cfg.LLM.Local.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Local.Timeout <= 0 {
		cfg.LLM.Local.Timeout = 2 * time.Minute
	}
	if cfg.LLM.Cloud.Provider == "" {
		cfg.LLM.Cloud.Provider = "openrouter"
	}

	if cfg.Scheduler.PassiveInterval <= 0 {
		cfg.Scheduler.PassiveInterval = 8 * time.Hour
	}
	if cfg.Scheduler.NightlyPollInterval <= 0 {
		cfg.Scheduler.NightlyPollInterval = 5 * time.Minute
	}
	if cfg.Scheduler.NightlyMinGap <= 0 {
		cfg.Scheduler.NightlyMinGap = 22 * time.Hour
	}
	if cfg.Scheduler.ConversationQuietGap <= 0 {
		cfg.Scheduler.ConversationQuietGap = 15 * time.Minute
	}
	if cfg.Scheduler.NightlyQuietWindow.StartHour == 0 && cfg.Scheduler.NightlyQuietWindow.EndHour == 0 {
		cfg.Scheduler.NightlyQuietWindow = ClockWindow{StartHour: 1, EndHour: 5}
	}

	if cfg.Sleep.ForgetMinConfidence == 0 {
		cfg.Sleep.ForgetMinConfidence = 0.30
	}
	if cfg.Sleep.MultiAgentBatchSize == 0 {
		cfg.Sleep.MultiAgentBatchSize = 60
	}

	if cfg.Proactive.Cooldown <= 0 {
		cfg.Proactive.Cooldown = 2 * time.Hour
	}

	if cfg.Execution.ApprovalMode == "" {
		cfg.Execution.ApprovalMode = models.ApprovalBalanced
	}
	if cfg.Execution.MaxAutoApprovePerSession == 0 {
		cfg.Execution.MaxAutoApprovePerSession = 20
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); v != "" {
		cfg.LLM.Cloud.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.Cloud.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); v != "" {
		cfg.LLM.Local.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		cfg.Telegram.BotToken = v
		cfg.Telegram.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("BRAVE_API_KEY")); v != "" {
		cfg.Tools.WebSearchKey = v
		cfg.Execution.BraveAPIKey = v
	}
}

// ConfigError reports one or more validation failures.
type ConfigError struct {
	Issues []string
}

func (e *ConfigError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	switch cfg.Execution.ApprovalMode {
	case models.ApprovalSafer, models.ApprovalBalanced, models.ApprovalAutonomous:
	default:
		issues = append(issues, fmt.Sprintf("execution.approval_mode %q must be safer, balanced, or autonomous", cfg.Execution.ApprovalMode))
	}
	if cfg.Execution.MaxAutoApprovePerSession < 0 {
		issues = append(issues, "execution.max_auto_approve_per_session must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Cloud.Provider)) {
	case "openrouter", "anthropic":
	default:
		issues = append(issues, fmt.Sprintf("llm.cloud.provider %q must be openrouter or anthropic", cfg.LLM.Cloud.Provider))
	}

	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		issues = append(issues, "telegram.bot_token is required when telegram.enabled is true")
	}

	if cfg.Scheduler.PassiveInterval < 0 {
		issues = append(issues, "scheduler.passive_interval must be >= 0")
	}
	if cfg.Sleep.ForgetMinConfidence < 0 || cfg.Sleep.ForgetMinConfidence > 1 {
		issues = append(issues, "sleep.forget_min_confidence must be between 0 and 1")
	}

	if len(issues) > 0 {
		return &ConfigError{Issues: issues}
	}
	return nil
}
