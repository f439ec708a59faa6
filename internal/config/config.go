package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration, read from environment
// variables with sensible defaults.
//
// Environment Variables:
//
// HTTP:
// - HTTP_ADDR: listen address (default: :5050)
// - MAX_UPLOAD_BYTES: request body cap in bytes (default: 300 MB)
// - ALLOWED_EXTENSIONS: comma-separated upload extensions
//   (default: wav,mp3,m4a,ogg,flac,aac,opus)
//
// Storage:
// - UPLOAD_DIR: staging directory for uploads (default: uploads)
// - DB_PATH: SQLite database path (default: data/jobs.db)
//
// Workers:
// - WORKER_COUNT: transcription worker goroutines (default: 1)
// - MAX_JOBS: in-memory job retention cap (default: 1000)
//
// Model:
// - DEFAULT_MODEL: model used when the request names none (default: base)
// - PRELOAD_MODEL: model warmed at startup, empty disables (default: base)
// - PREFERRED_DEVICE: first device tried for model loads (default: cuda)
// - FALLBACK_DEVICE: device tried once after the preferred one fails (default: cpu)
// - WHISPER_BIN: whisper executable name or path (default: whisper)
//
// Housekeeping:
// - CLEANUP_CRON_EXPR: janitor schedule (default: @hourly)
// - UPLOAD_TTL_HOURS: staged file age before the janitor may delete it (default: 24)
// - LOG_LEVEL: debug|info|warn|error|fatal (default: info)

type Config struct {
	HTTP    HTTPConfig    `json:"http"`
	Storage StorageConfig `json:"storage"`
	Worker  WorkerConfig  `json:"worker"`
	Model   ModelConfig   `json:"model"`
	Cleanup CleanupConfig `json:"cleanup"`

	LogLevel string `json:"log_level"`
}

type HTTPConfig struct {
	Addr              string   `json:"addr"`
	MaxUploadBytes    int64    `json:"max_upload_bytes"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

type StorageConfig struct {
	UploadDir string `json:"upload_dir"`
	DBPath    string `json:"db_path"`
}

type WorkerConfig struct {
	Count   int `json:"count"`
	MaxJobs int `json:"max_jobs"`
}

type ModelConfig struct {
	DefaultModel    string `json:"default_model"`
	PreloadModel    string `json:"preload_model"`
	PreferredDevice string `json:"preferred_device"`
	FallbackDevice  string `json:"fallback_device"`
	WhisperBin      string `json:"whisper_bin"`
}

type CleanupConfig struct {
	CronExpr       string `json:"cron_expr"`
	UploadTTLHours int    `json:"upload_ttl_hours"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		HTTP: HTTPConfig{
			Addr:              getEnvString("HTTP_ADDR", ":5050"),
			MaxUploadBytes:    getEnvInt64("MAX_UPLOAD_BYTES", 300<<20),
			AllowedExtensions: splitList(getEnvString("ALLOWED_EXTENSIONS", "wav,mp3,m4a,ogg,flac,aac,opus")),
		},
		Storage: StorageConfig{
			UploadDir: getEnvString("UPLOAD_DIR", "uploads"),
			DBPath:    getEnvString("DB_PATH", "data/jobs.db"),
		},
		Worker: WorkerConfig{
			Count:   getEnvInt("WORKER_COUNT", 1),
			MaxJobs: getEnvInt("MAX_JOBS", 1000),
		},
		Model: ModelConfig{
			DefaultModel:    getEnvString("DEFAULT_MODEL", "base"),
			PreloadModel:    getEnvString("PRELOAD_MODEL", "base"),
			PreferredDevice: getEnvString("PREFERRED_DEVICE", "cuda"),
			FallbackDevice:  getEnvString("FALLBACK_DEVICE", "cpu"),
			WhisperBin:      getEnvString("WHISPER_BIN", "whisper"),
		},
		Cleanup: CleanupConfig{
			CronExpr:       getEnvString("CLEANUP_CRON_EXPR", "@hourly"),
			UploadTTLHours: getEnvInt("UPLOAD_TTL_HOURS", 24),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if len(c.HTTP.AllowedExtensions) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must not be empty")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	if c.Model.PreferredDevice == "" {
		return fmt.Errorf("PREFERRED_DEVICE is required")
	}
	return nil
}

// ExtensionAllowed reports whether ext (without the dot, any case) is in the
// configured allow list.
func (c *Config) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.HTTP.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			ret = append(ret, part)
		}
	}
	return ret
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 gets a 64-bit integer value from environment variables with default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
