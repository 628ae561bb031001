// Package config loads service configuration from the environment with an
// optional YAML overlay, and sets up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kweber/scribeq/internal/job"
)

// Config holds all configuration values.
type Config struct {
	// HTTP listen address.
	Addr string

	// Process-wide fallback credential, used when a submission carries
	// no token of its own.
	DefaultToken string

	// Transcriber invocation.
	EngineCommand string
	EngineArgs    []string

	// Base directory for job working areas; empty means os.TempDir.
	WorkDir string

	// Upload limit per submission.
	MaxUploadBytes int64

	// Reaper timings.
	CleanupInterval time.Duration
	ResultTTL       time.Duration
	FailureTTL      time.Duration

	// Logging.
	LogFile  string
	LogLevel slog.Level
}

const defaultMaxUploadBytes = 512 << 20

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Addr:          getEnv("SCRIBEQ_ADDR", ":8134"),
		DefaultToken:  getEnv("SCRIBEQ_TOKEN", os.Getenv("HUGGINGFACE_TOKEN")),
		EngineCommand: getEnv("SCRIBEQ_ENGINE_CMD", "whisper-diarize"),
		EngineArgs:    strings.Fields(os.Getenv("SCRIBEQ_ENGINE_ARGS")),
		WorkDir:       os.Getenv("SCRIBEQ_WORK_DIR"),

		MaxUploadBytes: getEnvInt64("SCRIBEQ_MAX_UPLOAD_BYTES", defaultMaxUploadBytes),

		CleanupInterval: getEnvDuration("SCRIBEQ_CLEANUP_INTERVAL", job.DefaultCleanupInterval),
		ResultTTL:       getEnvDuration("SCRIBEQ_RESULT_TTL", job.DefaultResultTTL),
		FailureTTL:      getEnvDuration("SCRIBEQ_FAILED_TTL", job.DefaultFailureTTL),

		LogFile:  getEnv("SCRIBEQ_LOG_FILE", "/tmp/scribeq.log"),
		LogLevel: parseLogLevel(getEnv("SCRIBEQ_LOG_LEVEL", "INFO")),
	}
}

// fileConfig mirrors Config for the YAML overlay; only set fields
// override the environment-derived values.
type fileConfig struct {
	Addr            *string  `yaml:"addr"`
	DefaultToken    *string  `yaml:"default_token"`
	EngineCommand   *string  `yaml:"engine_command"`
	EngineArgs      []string `yaml:"engine_args"`
	WorkDir         *string  `yaml:"work_dir"`
	MaxUploadBytes  *int64   `yaml:"max_upload_bytes"`
	CleanupInterval *string  `yaml:"cleanup_interval"`
	ResultTTL       *string  `yaml:"result_ttl"`
	FailureTTL      *string  `yaml:"failed_ttl"`
	LogFile         *string  `yaml:"log_file"`
	LogLevel        *string  `yaml:"log_level"`
}

// ApplyFile overlays settings from a YAML file onto c. Durations are
// Go duration strings ("30m", "90s").
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.Addr != nil {
		c.Addr = *fc.Addr
	}
	if fc.DefaultToken != nil {
		c.DefaultToken = *fc.DefaultToken
	}
	if fc.EngineCommand != nil {
		c.EngineCommand = *fc.EngineCommand
	}
	if fc.EngineArgs != nil {
		c.EngineArgs = fc.EngineArgs
	}
	if fc.WorkDir != nil {
		c.WorkDir = *fc.WorkDir
	}
	if fc.MaxUploadBytes != nil {
		c.MaxUploadBytes = *fc.MaxUploadBytes
	}
	if fc.LogFile != nil {
		c.LogFile = *fc.LogFile
	}
	if fc.LogLevel != nil {
		c.LogLevel = parseLogLevel(*fc.LogLevel)
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{deref(fc.CleanupInterval), &c.CleanupInterval},
		{deref(fc.ResultTTL), &c.ResultTTL},
		{deref(fc.FailureTTL), &c.FailureTTL},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
		*d.dst = parsed
	}

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
