package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":5050", cfg.HTTP.Addr)
	assert.Equal(t, int64(300<<20), cfg.HTTP.MaxUploadBytes)
	assert.Equal(t, []string{"wav", "mp3", "m4a", "ogg", "flac", "aac", "opus"}, cfg.HTTP.AllowedExtensions)
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
	assert.Equal(t, "data/jobs.db", cfg.Storage.DBPath)
	assert.Equal(t, 1, cfg.Worker.Count)
	assert.Equal(t, 1000, cfg.Worker.MaxJobs)
	assert.Equal(t, "base", cfg.Model.DefaultModel)
	assert.Equal(t, "cuda", cfg.Model.PreferredDevice)
	assert.Equal(t, "cpu", cfg.Model.FallbackDevice)
	assert.Equal(t, "whisper", cfg.Model.WhisperBin)
	assert.Equal(t, "@hourly", cfg.Cleanup.CronExpr)
	assert.Equal(t, 24, cfg.Cleanup.UploadTTLHours)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewFromEnv_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("ALLOWED_EXTENSIONS", "WAV, Flac ,")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("DEFAULT_MODEL", "large-v3")
	t.Setenv("PREFERRED_DEVICE", "cpu")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxUploadBytes)
	assert.Equal(t, []string{"wav", "flac"}, cfg.HTTP.AllowedExtensions)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, "large-v3", cfg.Model.DefaultModel)
	assert.Equal(t, "cpu", cfg.Model.PreferredDevice)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewFromEnv_IgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("MAX_UPLOAD_BYTES", "huge")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Worker.Count)
	assert.Equal(t, int64(300<<20), cfg.HTTP.MaxUploadBytes)
}

func TestNewFromEnv_Options(t *testing.T) {
	cfg, err := NewFromEnv(func(c *Config) {
		c.Worker.Count = 8
		c.Storage.UploadDir = "/tmp/staging"
	})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Worker.Count)
	assert.Equal(t, "/tmp/staging", cfg.Storage.UploadDir)
}

func TestNewFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name   string
		opt    Option
		errMsg string
	}{
		{"missing addr", func(c *Config) { c.HTTP.Addr = "" }, "HTTP_ADDR"},
		{"zero upload cap", func(c *Config) { c.HTTP.MaxUploadBytes = 0 }, "MAX_UPLOAD_BYTES"},
		{"no extensions", func(c *Config) { c.HTTP.AllowedExtensions = nil }, "ALLOWED_EXTENSIONS"},
		{"missing upload dir", func(c *Config) { c.Storage.UploadDir = "" }, "UPLOAD_DIR"},
		{"missing db path", func(c *Config) { c.Storage.DBPath = "" }, "DB_PATH"},
		{"zero workers", func(c *Config) { c.Worker.Count = 0 }, "WORKER_COUNT"},
		{"missing device", func(c *Config) { c.Model.PreferredDevice = "" }, "PREFERRED_DEVICE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFromEnv(tc.opt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestExtensionAllowed(t *testing.T) {
	cfg := &Config{HTTP: HTTPConfig{AllowedExtensions: []string{"wav", "mp3"}}}

	assert.True(t, cfg.ExtensionAllowed("wav"))
	assert.True(t, cfg.ExtensionAllowed(".WAV"))
	assert.True(t, cfg.ExtensionAllowed("MP3"))
	assert.False(t, cfg.ExtensionAllowed("exe"))
	assert.False(t, cfg.ExtensionAllowed(""))
}
