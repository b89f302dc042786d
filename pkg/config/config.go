package config

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Config defines the global application configuration structure.
// This structure maps directly to the config.json file and holds
// business-level settings: bot identity, persona text, scheduler and
// stamina tuning, credential lists and channel payloads.
type Config struct {
	// BotID is the opaque platform identity of the bot account (e.g., the QQ
	// number). Used to tag assistant-role entries when assembling context.
	BotID string `json:"bot_id"`
	// BotName is the display name the bot answers to. Messages containing it
	// (or @BotName) are treated as high priority. Falls back to BotID.
	BotName string `json:"bot_name"`
	// AdminID is the only sender allowed to issue admin commands.
	AdminID string `json:"admin_id"`
	// Persona is the system prompt describing who the bot is.
	Persona string `json:"persona"`
	// Traits is an optional list of style/trait guidance lines appended to
	// the persona in enumerated form.
	Traits []string `json:"traits,omitempty"`

	// Scheduler holds the per-conversation queue trigger parameters.
	Scheduler SchedulerConfig `json:"scheduler"`
	// Stamina holds the fatigue model parameters.
	Stamina StaminaConfig `json:"stamina"`
	// Credentials holds the LLM API credential lists.
	Credentials CredentialConfig `json:"credentials"`

	// LLM holds the provider group configuration in raw JSON
	// (same shape the provider factories consume).
	LLM jsoniter.RawMessage `json:"llm"`
	// Channels contains a map of channel identifiers (e.g., "onebot",
	// "telegram") to their specific configuration payloads in raw JSON.
	Channels map[string]jsoniter.RawMessage `json:"channels"`

	// ThoughtLogPath is where record-thought tasks append NDJSON records.
	ThoughtLogPath string `json:"thought_log_path"`
}

// SchedulerConfig controls the five queue trigger policies.
type SchedulerConfig struct {
	// SilenceSeconds arms the per-context silence timer on every
	// non-priority enqueue. Default: 8.
	SilenceSeconds int `json:"silence_seconds"`
	// MaxQueueSize flushes a context once this many messages are buffered.
	// Default: 10.
	MaxQueueSize int `json:"max_queue_size"`
	// MaxQueueAgeSeconds flushes a context once the oldest buffered message
	// is this old. Default: 30.
	MaxQueueAgeSeconds int `json:"max_queue_age_seconds"`
	// RetainOnCritical keeps messages queued instead of draining them when a
	// flush is refused at critical stamina. Default: false (destructive).
	RetainOnCritical bool `json:"retain_on_critical"`
}

// StaminaConfig holds the fatigue-with-inertia model parameters.
// Zero values are replaced by defaults at load time.
type StaminaConfig struct {
	Max               float64 `json:"max"`                // S_max, default 100
	BaseCost          float64 `json:"base_cost"`          // k, default 1
	CostExponent      float64 `json:"cost_exponent"`      // p, default 1
	MomentumAccrual   float64 `json:"momentum_accrual"`   // α, default 0.5
	MomentumDecay     float64 `json:"momentum_decay"`     // β, default 0.1
	MomentumPenalty   float64 `json:"momentum_penalty"`   // γ, default 0.4
	RecoveryRate      float64 `json:"recovery_rate"`      // r, default 5
	RegenIntervalMs   int     `json:"regen_interval_ms"`  // default 1000
	CriticalThreshold float64 `json:"critical_threshold"` // default 10
	RestMode          bool    `json:"rest_mode"`
}

// CredentialConfig lists the LLM API secrets. Primary and Backup are merged
// in order and deduplicated on identity before the pool is built.
type CredentialConfig struct {
	Primary []string `json:"primary"`
	Backup  []string `json:"backup,omitempty"`
}

// Merged returns the primary list followed by the backup list, deduplicated,
// with FINGERBOT_API_KEYS from the environment appended last.
func (c *CredentialConfig) Merged() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(key string) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	for _, k := range c.Primary {
		add(k)
	}
	for _, k := range c.Backup {
		add(k)
	}
	if env := os.Getenv("FINGERBOT_API_KEYS"); env != "" {
		for _, k := range strings.Split(env, ",") {
			add(k)
		}
	}
	return out
}

// Validate ensures the configuration contains all mandatory fields.
// A config without credentials refuses to start the process.
func (c *Config) Validate() error {
	if c.BotID == "" {
		return fmt.Errorf("mandatory 'bot_id' is missing")
	}
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing or empty")
	}
	if len(c.Credentials.Merged()) == 0 {
		return fmt.Errorf("no LLM credentials configured (primary/backup lists and FINGERBOT_API_KEYS are all empty)")
	}
	return nil
}

// DisplayName returns BotName, falling back to BotID.
func (c *Config) DisplayName() string {
	if c.BotName != "" {
		return c.BotName
	}
	return c.BotID
}

// ApplyDefaults fills zero-valued tunables with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Scheduler.SilenceSeconds <= 0 {
		c.Scheduler.SilenceSeconds = 8
	}
	if c.Scheduler.MaxQueueSize <= 0 {
		c.Scheduler.MaxQueueSize = 10
	}
	if c.Scheduler.MaxQueueAgeSeconds <= 0 {
		c.Scheduler.MaxQueueAgeSeconds = 30
	}
	s := &c.Stamina
	if s.Max <= 0 {
		s.Max = 100
	}
	if s.BaseCost <= 0 {
		s.BaseCost = 1
	}
	if s.CostExponent <= 0 {
		s.CostExponent = 1
	}
	if s.MomentumAccrual <= 0 {
		s.MomentumAccrual = 0.5
	}
	if s.MomentumDecay <= 0 {
		s.MomentumDecay = 0.1
	}
	if s.MomentumPenalty <= 0 {
		s.MomentumPenalty = 0.4
	}
	if s.RecoveryRate <= 0 {
		s.RecoveryRate = 5
	}
	if s.RegenIntervalMs <= 0 {
		s.RegenIntervalMs = 1000
	}
	if s.CriticalThreshold <= 0 {
		s.CriticalThreshold = 10
	}
	if c.ThoughtLogPath == "" {
		c.ThoughtLogPath = "thoughts.ndjson"
	}
}

// SystemConfig defines engine-level technical parameters.
// These settings are usually stored in system.json and control the
// performance, reliability, and technical behavior of the engine.
type SystemConfig struct {
	// MaxRetries is the number of attempts for a single logical LLM call
	// before the batch is surfaced as failed.
	MaxRetries int `json:"max_retries"`
	// RetryBaseDelayMs is the base of the exponential backoff between
	// consecutive LLM attempts.
	RetryBaseDelayMs int `json:"retry_base_delay_ms"`
	// RetryMaxDelayMs caps the backoff regardless of attempt count.
	RetryMaxDelayMs int `json:"retry_max_delay_ms"`
	// LLMTimeoutMs is the hard cutoff time (in milliseconds) for an
	// LLM request. The context will be cancelled if exceeded.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// TaskMaxAttempts bounds retries of delivery/side-effect tasks.
	TaskMaxAttempts int `json:"task_max_attempts"`
	// CorrelationTTLMinutes evicts pending correlations never matched by a
	// flush. Default: 30.
	CorrelationTTLMinutes int `json:"correlation_ttl_minutes"`
	// InternalChannelBuffer defines the size of the internal Go channels
	// used for buffering to prevent production blocking.
	InternalChannelBuffer int `json:"internal_channel_buffer"`
	// DebugCompletions enables saving every raw LLM completion to the
	// /debug folder for inspection and troubleshooting purposes.
	DebugCompletions bool `json:"debug_completions"`
	// LogLevel sets the minimum severity for log output.
	// Accepted values: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `json:"log_level"`
	// HistoryRingSize bounds the per-conversation in-memory history.
	HistoryRingSize int `json:"history_ring_size"`
	// HistoryContextSize bounds the recent-history slice handed to the LLM.
	HistoryContextSize int `json:"history_context_size"`
	// OllamaDefaultURL is the fallback endpoint used when connecting
	// to a local Ollama instance if no specific URL is provided.
	OllamaDefaultURL string `json:"ollama_default_url"`
}

// DefaultSystemConfig returns a SystemConfig pointer initialized with
// hardcoded safe default values. This is used as a fallback when the
// system.json file is missing or corrupt, ensuring the engine can always start.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:            3,
		RetryBaseDelayMs:      1000,
		RetryMaxDelayMs:       10000,
		LLMTimeoutMs:          600000,
		TaskMaxAttempts:       3,
		CorrelationTTLMinutes: 30,
		InternalChannelBuffer: 100,
		LogLevel:              "info",
		HistoryRingSize:       100,
		HistoryContextSize:    50,
		OllamaDefaultURL:      "http://localhost:11434",
	}
}

// Load reads and parses the JSON configuration files from the current working directory.
// It first attempts to load 'config.json' (app config). If this file is missing, it returns an error.
// Then it calls LoadSystemConfig to load 'system.json'.
// Returns pointers to the loaded Config and SystemConfig, or an error if the mandatory app config fails.
func Load() (*Config, *SystemConfig, error) {
	appPath := "config.json"
	if _, err := os.Stat(appPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file '%s' not found. please create one", appPath)
	}

	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	sysCfg := LoadSystemConfig("system.json")

	return &cfg, sysCfg, nil
}

// LoadSystemConfig attempts to load system settings, returns defaults if it fails
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg // File not found, use defaults
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return cfg // Parse failed, use defaults
	}

	return cfg
}
