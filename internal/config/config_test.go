package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-slicer/internal/slicer"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slicer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func noEnv() envconfig.Lookuper {
	return envconfig.MapLookuper(map[string]string{})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), "", noEnv())
	require.NoError(t, err)

	assert.Equal(t, slicer.DefaultParams(), cfg.Params())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 256, cfg.Server.MaxUploadMB)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.S3Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeYAML(t, `
slicer:
  db_thresh: -35
  min_length: 3000
output:
  dir: /tmp/clips
  workers: 4
s3:
  bucket: clips
  region: eu-west-1
`)

	cfg, err := LoadWith(context.Background(), path, noEnv())
	require.NoError(t, err)

	assert.InDelta(t, -35.0, cfg.Slicer.ThresholdDB, 1e-9)
	assert.Equal(t, 3000, cfg.Slicer.MinLengthMs)
	assert.Equal(t, 300, cfg.Slicer.MinIntervalMs, "untouched keys keep defaults")
	assert.Equal(t, "/tmp/clips", cfg.Output.Dir)
	assert.Equal(t, 4, cfg.Output.Workers)
	assert.True(t, cfg.S3Enabled())
	assert.Equal(t, "eu-west-1", cfg.S3Sink().Region)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeYAML(t, "slicer:\n  hop_size: 20\n  max_sil_kept: 400\n")
	env := envconfig.MapLookuper(map[string]string{
		"AUDIO_SLICER_HOP_SIZE":   "5",
		"AUDIO_SLICER_LOG_FORMAT": "json",
		"AUDIO_SLICER_S3_BUCKET":  "from-env",
		"HOP_SIZE":                "999",
	})

	cfg, err := LoadWith(context.Background(), path, env)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Slicer.HopSizeMs)
	assert.Equal(t, 400, cfg.Slicer.MaxSilKeptMs, "unset variables keep file values")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "from-env", cfg.S3.Bucket)
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("AUDIO_SLICER_MIN_INTERVAL", "250")
	t.Setenv("AUDIO_SLICER_WORKERS", "2")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Slicer.MinIntervalMs)
	assert.Equal(t, 2, cfg.Output.Workers)
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadWith(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), noEnv())
	assert.ErrorIs(t, err, ErrReadConfig)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadWith(context.Background(), writeYAML(t, "slicer:\n  hop_sise: 10\n"), noEnv())
	assert.ErrorIs(t, err, ErrReadConfig, "unknown keys are rejected")

	_, err = LoadWith(context.Background(), "", envconfig.MapLookuper(map[string]string{
		"AUDIO_SLICER_HOP_SIZE": "ten",
	}))
	assert.ErrorIs(t, err, ErrReadConfig)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := LoadWith(context.Background(), writeYAML(t, ""), noEnv())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*Config)
		slicerReason bool
	}{
		{name: "positive threshold", mutate: func(c *Config) { c.Slicer.ThresholdDB = 3 }},
		{name: "zero hop", mutate: func(c *Config) { c.Slicer.HopSizeMs = 0 }},
		{name: "negative workers", mutate: func(c *Config) { c.Output.Workers = -1 }},
		{name: "bucket without region", mutate: func(c *Config) { c.S3.Bucket = "b" }},
		{name: "bad endpoint", mutate: func(c *Config) { c.S3.Endpoint = "not a url" }},
		{name: "unknown log level", mutate: func(c *Config) { c.Logging.Level = "chatty" }},
		{name: "unknown log format", mutate: func(c *Config) { c.Logging.Format = "xml" }},
		{name: "empty addr", mutate: func(c *Config) { c.Server.Addr = "" }},
		{
			name:         "min_interval above min_length",
			mutate:       func(c *Config) { c.Slicer.MinIntervalMs = 6000 },
			slicerReason: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			if tt.slicerReason {
				assert.ErrorIs(t, err, slicer.ErrInvalidConfiguration)
			}
		})
	}
}

func TestString_MasksSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.S3.SecretAccessKey = "super-secret"

	assert.NotContains(t, cfg.String(), "super-secret")
	assert.Contains(t, cfg.String(), `S3Secret: "***"`)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("whatever"))
}
