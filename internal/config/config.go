// Package config provides configuration loading for companiond.
//
// Configuration is loaded from environment variables with defaults, or from a
// YAML file overridden by environment variables (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete companiond configuration.
type Config struct {
	Server          ServerConfig          `koanf:"server"`
	Database        DatabaseConfig        `koanf:"database"`
	Redis           RedisConfig           `koanf:"redis"`
	LLM             LLMConfig             `koanf:"llm"`
	Events          EventsConfig          `koanf:"events"`
	Personalization PersonalizationConfig `koanf:"personalization"`
	Jobs            JobsConfig            `koanf:"jobs"`
	Observability   ObservabilityConfig   `koanf:"observability"`
	Logging         LoggingConfig         `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects the gorm dialector and connection settings.
type DatabaseConfig struct {
	Driver       string `koanf:"driver"`         // sqlite | postgres
	DSN          Secret `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	LogLevel     string `koanf:"log_level"`      // silent | error | warn | info
}

// RedisConfig configures the preference and cooldown cache.
// An empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr     string   `koanf:"addr"`
	Password Secret   `koanf:"password"`
	DB       int      `koanf:"db"`
	CacheTTL Duration `koanf:"cache_ttl"`
}

// LLMConfig configures the text-generation backend.
type LLMConfig struct {
	Provider       string   `koanf:"provider"`        // openai | ollama | none
	APIKey         Secret   `koanf:"api_key"`
	Model          string   `koanf:"model"`
	BaseURL        string   `koanf:"base_url"`
	Timeout        Duration `koanf:"timeout"`
	RateLimit      float64  `koanf:"rate_limit"`      // requests per second
	Burst          int      `koanf:"burst"`
	// RedactionRules is a TOML file of extra redaction rules and allowlist
	// patterns. It is watched and reloaded on change.
	RedactionRules string   `koanf:"redaction_rules"`
}

// EventsConfig configures the optional NATS event stream. Notifications are
// published to <prefix>.notifications.<user>.<type> when NATSURL is set.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// PersonalizationConfig holds the analysis cadence.
type PersonalizationConfig struct {
	// AnalysisIntervalDays is how stale lastAnalysis must be before the
	// periodic job re-analyzes a user.
	AnalysisIntervalDays int     `koanf:"analysis_interval_days"`
	// MinDaysSinceAnalysis debounces every analysis, scheduled or on demand.
	MinDaysSinceAnalysis int     `koanf:"min_days_since_analysis"`
	LookbackDays         int     `koanf:"lookback_days"`
	DefaultDecayRate     float64 `koanf:"default_decay_rate"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	IntervalHours        int      `koanf:"interval_hours"`
	RunOnStartup         bool     `koanf:"run_on_startup"`
	BatchSize            int      `koanf:"batch_size"`
	BatchDelay           Duration `koanf:"batch_delay"`
	ActiveWindowDays     int      `koanf:"active_window_days"`
	ReminderSchedule     string   `koanf:"reminder_schedule"`
	WeeklyReportSchedule string   `koanf:"weekly_report_schedule"`
	QueueConcurrency     int      `koanf:"queue_concurrency"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"`    // grpc | http/protobuf
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
	SampleRate      float64 `koanf:"sample_rate"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - SERVER_PORT: HTTP server port (default: 9090)
//   - DATABASE_DRIVER / DATABASE_DSN: gorm dialector and DSN (default: sqlite, companiond.db)
//   - REDIS_ADDR: redis address; empty uses the in-process cache
//   - LLM_PROVIDER / LLM_API_KEY / LLM_MODEL: text generation backend (default: none)
//   - LLM_REDACTION_RULES: TOML redaction rules file (default: built-in rules)
//   - NATS_URL: publish notification events to NATS (default: disabled)
//   - PERSONALIZATION_ANALYSIS_INTERVAL_DAYS: re-analysis cadence (default: 7)
//   - MIN_DAYS_SINCE_ANALYSIS: analysis debounce (default: 3)
//   - PERSONALIZATION_JOB_INTERVAL_HOURS: job interval (default: 24)
//   - PERSONALIZATION_JOB_RUN_ON_STARTUP: run the job once at startup (default: false)
//
// Example:
//
//	cfg := config.Load()
//	fmt.Println("Server port:", cfg.Server.Port)
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 9090),
			ShutdownTimeout: Duration(getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)),
		},
		Database: DatabaseConfig{
			Driver:       getEnvString("DATABASE_DRIVER", "sqlite"),
			DSN:          Secret(getEnvString("DATABASE_DSN", "companiond.db")),
			MaxOpenConns: getEnvInt("DATABASE_MAX_OPEN_CONNS", 10),
			LogLevel:     getEnvString("DATABASE_LOG_LEVEL", "warn"),
		},
		Redis: RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", ""),
			Password: Secret(getEnvString("REDIS_PASSWORD", "")),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: Duration(getEnvDuration("REDIS_CACHE_TTL", 10*time.Minute)),
		},
		LLM: LLMConfig{
			Provider:       getEnvString("LLM_PROVIDER", "none"),
			APIKey:         Secret(getEnvString("LLM_API_KEY", "")),
			Model:          getEnvString("LLM_MODEL", ""),
			BaseURL:        getEnvString("LLM_BASE_URL", ""),
			Timeout:        Duration(getEnvDuration("LLM_TIMEOUT", 30*time.Second)),
			RateLimit:      getEnvFloat("LLM_RATE_LIMIT", 1.0),
			Burst:          getEnvInt("LLM_BURST", 3),
			RedactionRules: getEnvString("LLM_REDACTION_RULES", ""),
		},
		Events: EventsConfig{
			NATSURL:       getEnvString("NATS_URL", ""),
			SubjectPrefix: getEnvString("NATS_SUBJECT_PREFIX", "companiond"),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", false),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "companiond"),
			OTLPEndpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:    getEnvString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			OTLPInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRate:      getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
	}

	cfg.Personalization = defaultPersonalization()
	cfg.Jobs = defaultJobs()
	applyPersonalizationEnv(cfg)

	return cfg
}

func defaultPersonalization() PersonalizationConfig {
	return PersonalizationConfig{
		AnalysisIntervalDays: 7,
		MinDaysSinceAnalysis: 3,
		LookbackDays:         30,
		DefaultDecayRate:     0.1,
	}
}

func defaultJobs() JobsConfig {
	return JobsConfig{
		IntervalHours:        24,
		RunOnStartup:         false,
		BatchSize:            10,
		BatchDelay:           Duration(time.Second),
		ActiveWindowDays:     30,
		ReminderSchedule:     "0 9 * * *",
		WeeklyReportSchedule: "0 10 * * 0",
		QueueConcurrency:     3,
	}
}

// applyPersonalizationEnv reads the unprefixed personalization variables.
// They win over file values so existing deployments keep working.
func applyPersonalizationEnv(cfg *Config) {
	p := &cfg.Personalization
	p.AnalysisIntervalDays = getEnvInt("PERSONALIZATION_ANALYSIS_INTERVAL_DAYS", p.AnalysisIntervalDays)
	p.MinDaysSinceAnalysis = getEnvInt("MIN_DAYS_SINCE_ANALYSIS", p.MinDaysSinceAnalysis)
	p.LookbackDays = getEnvInt("PERSONALIZATION_LOOKBACK_DAYS", p.LookbackDays)

	j := &cfg.Jobs
	j.IntervalHours = getEnvInt("PERSONALIZATION_JOB_INTERVAL_HOURS", j.IntervalHours)
	j.RunOnStartup = getEnvBool("PERSONALIZATION_JOB_RUN_ON_STARTUP", j.RunOnStartup)
	j.BatchSize = getEnvInt("PERSONALIZATION_JOB_BATCH_SIZE", j.BatchSize)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if !c.Database.DSN.IsSet() {
		return errors.New("database dsn is required")
	}

	switch c.LLM.Provider {
	case "none", "ollama":
	case "openai":
		if !c.LLM.APIKey.IsSet() {
			return errors.New("llm api key required for provider openai")
		}
	default:
		return fmt.Errorf("unsupported llm provider: %q", c.LLM.Provider)
	}

	p := c.Personalization
	if p.AnalysisIntervalDays < 1 {
		return fmt.Errorf("analysis interval days must be >= 1, got %d", p.AnalysisIntervalDays)
	}
	if p.MinDaysSinceAnalysis < 0 {
		return fmt.Errorf("min days since analysis must be >= 0, got %d", p.MinDaysSinceAnalysis)
	}
	if p.LookbackDays < 1 {
		return fmt.Errorf("lookback days must be >= 1, got %d", p.LookbackDays)
	}
	if p.DefaultDecayRate < 0 || p.DefaultDecayRate > 1 {
		return fmt.Errorf("decay rate must be between 0 and 1, got %f", p.DefaultDecayRate)
	}

	j := c.Jobs
	if j.IntervalHours < 1 {
		return fmt.Errorf("job interval hours must be >= 1, got %d", j.IntervalHours)
	}
	if j.BatchSize < 1 {
		return fmt.Errorf("batch size must be >= 1, got %d", j.BatchSize)
	}
	if j.QueueConcurrency < 1 {
		return fmt.Errorf("queue concurrency must be >= 1, got %d", j.QueueConcurrency)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
