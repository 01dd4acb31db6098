package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.RedactionRules)
	assert.Empty(t, cfg.Events.NATSURL)
	assert.Equal(t, "companiond", cfg.Events.SubjectPrefix)

	assert.Equal(t, 7, cfg.Personalization.AnalysisIntervalDays)
	assert.Equal(t, 3, cfg.Personalization.MinDaysSinceAnalysis)
	assert.Equal(t, 30, cfg.Personalization.LookbackDays)
	assert.Equal(t, 24, cfg.Jobs.IntervalHours)
	assert.False(t, cfg.Jobs.RunOnStartup)
	assert.Equal(t, 10, cfg.Jobs.BatchSize)
	assert.Equal(t, time.Second, cfg.Jobs.BatchDelay.Duration())
	assert.Equal(t, 3, cfg.Jobs.QueueConcurrency)

	require.NoError(t, cfg.Validate())
}

func TestLoad_PersonalizationEnv(t *testing.T) {
	t.Setenv("PERSONALIZATION_ANALYSIS_INTERVAL_DAYS", "14")
	t.Setenv("MIN_DAYS_SINCE_ANALYSIS", "1")
	t.Setenv("PERSONALIZATION_JOB_INTERVAL_HOURS", "6")
	t.Setenv("PERSONALIZATION_JOB_RUN_ON_STARTUP", "true")

	cfg := Load()

	assert.Equal(t, 14, cfg.Personalization.AnalysisIntervalDays)
	assert.Equal(t, 1, cfg.Personalization.MinDaysSinceAnalysis)
	assert.Equal(t, 6, cfg.Jobs.IntervalHours)
	assert.True(t, cfg.Jobs.RunOnStartup)
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("MIN_DAYS_SINCE_ANALYSIS", "three")
	t.Setenv("PERSONALIZATION_JOB_RUN_ON_STARTUP", "maybe")

	cfg := Load()

	assert.Equal(t, 3, cfg.Personalization.MinDaysSinceAnalysis)
	assert.False(t, cfg.Jobs.RunOnStartup)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mongo" }, "unsupported database driver"},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "database dsn is required"},
		{"openai without key", func(c *Config) { c.LLM.Provider = "openai" }, "llm api key required"},
		{"ollama without key", func(c *Config) { c.LLM.Provider = "ollama" }, ""},
		{"unknown llm", func(c *Config) { c.LLM.Provider = "mystery" }, "unsupported llm provider"},
		{"zero interval", func(c *Config) { c.Personalization.AnalysisIntervalDays = 0 }, "analysis interval days"},
		{"negative debounce", func(c *Config) { c.Personalization.MinDaysSinceAnalysis = -1 }, "min days since analysis"},
		{"decay out of range", func(c *Config) { c.Personalization.DefaultDecayRate = 1.5 }, "decay rate"},
		{"zero batch", func(c *Config) { c.Jobs.BatchSize = 0 }, "batch size"},
		{"zero queue", func(c *Config) { c.Jobs.QueueConcurrency = 0 }, "queue concurrency"},
		{"telemetry without name", func(c *Config) {
			c.Observability.EnableTelemetry = true
			c.Observability.ServiceName = ""
		}, "service name required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
