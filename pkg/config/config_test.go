package config

import (
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 8, cfg.Scheduler.SilenceSeconds)
	assert.Equal(t, 10, cfg.Scheduler.MaxQueueSize)
	assert.Equal(t, 30, cfg.Scheduler.MaxQueueAgeSeconds)
	assert.False(t, cfg.Scheduler.RetainOnCritical)

	assert.Equal(t, 100.0, cfg.Stamina.Max)
	assert.Equal(t, 1.0, cfg.Stamina.BaseCost)
	assert.Equal(t, 0.5, cfg.Stamina.MomentumAccrual)
	assert.Equal(t, 10.0, cfg.Stamina.CriticalThreshold)
	assert.Equal(t, 1000, cfg.Stamina.RegenIntervalMs)

	assert.Equal(t, "thoughts.ndjson", cfg.ThoughtLogPath)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Scheduler: SchedulerConfig{SilenceSeconds: 3, MaxQueueSize: 5},
		Stamina:   StaminaConfig{Max: 200, CriticalThreshold: 25},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 3, cfg.Scheduler.SilenceSeconds)
	assert.Equal(t, 5, cfg.Scheduler.MaxQueueSize)
	assert.Equal(t, 200.0, cfg.Stamina.Max)
	assert.Equal(t, 25.0, cfg.Stamina.CriticalThreshold)
}

func TestCredentialsMerged(t *testing.T) {
	t.Setenv("FINGERBOT_API_KEYS", "env-key-1, key-alpha ,env-key-2")
	c := CredentialConfig{
		Primary: []string{"key-alpha", "key-bravo", ""},
		Backup:  []string{"key-bravo", "key-charlie"},
	}

	assert.Equal(t, []string{
		"key-alpha", "key-bravo", "key-charlie", "env-key-1", "env-key-2",
	}, c.Merged())
}

func TestValidate(t *testing.T) {
	t.Setenv("FINGERBOT_API_KEYS", "")

	valid := Config{
		BotID:       "10001",
		LLM:         jsoniter.RawMessage(`[{"type":"openai","models":["gpt-test"]}]`),
		Credentials: CredentialConfig{Primary: []string{"key-alpha"}},
	}
	assert.NoError(t, valid.Validate())

	noBot := valid
	noBot.BotID = ""
	assert.ErrorContains(t, noBot.Validate(), "bot_id")

	noLLM := valid
	noLLM.LLM = nil
	assert.ErrorContains(t, noLLM.Validate(), "llm")

	noCreds := valid
	noCreds.Credentials = CredentialConfig{}
	assert.ErrorContains(t, noCreds.Validate(), "credentials")
}

func TestDisplayName(t *testing.T) {
	cfg := Config{BotID: "10001"}
	assert.Equal(t, "10001", cfg.DisplayName())
	cfg.BotName = "Finger"
	assert.Equal(t, "Finger", cfg.DisplayName())
}

func TestLoadSystemConfigDefaultsOnMissingFile(t *testing.T) {
	sys := LoadSystemConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, 3, sys.MaxRetries)
	assert.Equal(t, "info", sys.LogLevel)
	assert.Equal(t, 30, sys.CorrelationTTLMinutes)
	assert.Equal(t, "http://localhost:11434", sys.OllamaDefaultURL)
}

func TestLoadSystemConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_retries": 5, "log_level": "debug"}`), 0o644))

	sys := LoadSystemConfig(path)
	assert.Equal(t, 5, sys.MaxRetries)
	assert.Equal(t, "debug", sys.LogLevel)
	// Untouched fields keep their defaults.
	assert.Equal(t, 10000, sys.RetryMaxDelayMs)
}

func TestLoadSystemConfigDefaultsOnBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.json")
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))

	sys := LoadSystemConfig(path)
	assert.Equal(t, 3, sys.MaxRetries)
}
