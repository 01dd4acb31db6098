package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix scopes the structured environment overrides.
	envPrefix = "COMPANIOND_"
)

// LoadWithFile loads configuration from a YAML file, then overrides it with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Personalization variables (MIN_DAYS_SINCE_ANALYSIS, PERSONALIZATION_JOB_INTERVAL_HOURS, ...)
//  2. Prefixed environment variables (COMPANIOND_SERVER_HTTP_PORT, COMPANIOND_LLM_MODEL, ...)
//  3. YAML config file (~/.config/companiond/config.yaml)
//  4. Defaults
//
// The file must have 0600 or 0400 permissions, be at most 1MB, and live under
// ~/.config/companiond/ or /etc/companiond/. A missing file is not an error.
//
// Prefixed variables map the first segment after the prefix to a section:
//
//	COMPANIOND_SERVER_HTTP_PORT -> server.http_port
//	COMPANIOND_JOBS_BATCH_SIZE  -> jobs.batch_size
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "companiond", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		// Stat the open descriptor to avoid a TOCTOU race.
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	applyPersonalizationEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps COMPANIOND_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so they cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "companiond"),
		"/etc/companiond",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/companiond/ or /etc/companiond/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if !cfg.Database.DSN.IsSet() && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "companiond.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "companiond"
	}

	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = Duration(10 * time.Minute)
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "none"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(30 * time.Second)
	}
	if cfg.LLM.RateLimit == 0 {
		cfg.LLM.RateLimit = 1.0
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 3
	}

	pd := defaultPersonalization()
	p := &cfg.Personalization
	if p.AnalysisIntervalDays == 0 {
		p.AnalysisIntervalDays = pd.AnalysisIntervalDays
	}
	if p.MinDaysSinceAnalysis == 0 {
		p.MinDaysSinceAnalysis = pd.MinDaysSinceAnalysis
	}
	if p.LookbackDays == 0 {
		p.LookbackDays = pd.LookbackDays
	}
	if p.DefaultDecayRate == 0 {
		p.DefaultDecayRate = pd.DefaultDecayRate
	}

	jd := defaultJobs()
	j := &cfg.Jobs
	if j.IntervalHours == 0 {
		j.IntervalHours = jd.IntervalHours
	}
	if j.BatchSize == 0 {
		j.BatchSize = jd.BatchSize
	}
	if j.BatchDelay == 0 {
		j.BatchDelay = jd.BatchDelay
	}
	if j.ActiveWindowDays == 0 {
		j.ActiveWindowDays = jd.ActiveWindowDays
	}
	if j.ReminderSchedule == "" {
		j.ReminderSchedule = jd.ReminderSchedule
	}
	if j.WeeklyReportSchedule == "" {
		j.WeeklyReportSchedule = jd.WeeklyReportSchedule
	}
	if j.QueueConcurrency == 0 {
		j.QueueConcurrency = jd.QueueConcurrency
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "companiond"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
