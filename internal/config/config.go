// Package config loads the slicer configuration from defaults, an optional YAML
// file and AUDIO_SLICER_* environment variables. Command-line flags are applied
// on top by the caller before Validate.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"audio-slicer/internal/output"
	"audio-slicer/internal/slicer"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "AUDIO_SLICER_"

// Static errors for configuration loading and validation.
var (
	// ErrReadConfig is returned when the config file cannot be read or parsed.
	ErrReadConfig = errors.New("config: cannot read configuration")
	// ErrInvalidConfig is returned when validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config holds all configuration parameters for audio-slicer
type Config struct {
	Slicer  SlicerConfig  `yaml:"slicer"`
	Output  OutputConfig  `yaml:"output"`
	S3      S3Config      `yaml:"s3"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// SlicerConfig contains the silence detection parameters
type SlicerConfig struct {
	ThresholdDB   float64 `yaml:"db_thresh" env:"DB_THRESH" validate:"gte=-120,lte=0"`
	MinLengthMs   int     `yaml:"min_length" env:"MIN_LENGTH" validate:"gt=0"`
	MinIntervalMs int     `yaml:"min_interval" env:"MIN_INTERVAL" validate:"gt=0"`
	HopSizeMs     int     `yaml:"hop_size" env:"HOP_SIZE" validate:"gt=0"`
	MaxSilKeptMs  int     `yaml:"max_sil_kept" env:"MAX_SIL_KEPT" validate:"gt=0"`
}

// OutputConfig contains batch output settings
type OutputConfig struct {
	// Dir is the clip directory; empty writes clips next to each input
	Dir string `yaml:"dir" env:"OUT_DIR"`
	// Workers is the number of files processed in parallel; 0 means one per CPU
	Workers int `yaml:"workers" env:"WORKERS" validate:"gte=0"`
	// MetricsFile receives a Prometheus text dump after a run
	MetricsFile string `yaml:"metrics_file" env:"METRICS_FILE"`
}

// S3Config contains the optional S3 upload settings
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"S3_BUCKET"`
	Region          string `yaml:"region" env:"S3_REGION" validate:"required_with=Bucket"`
	Prefix          string `yaml:"prefix" env:"S3_PREFIX"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" validate:"required_with=AccessKeyID"`
	KeepLocal       bool   `yaml:"keep_local" env:"S3_KEEP_LOCAL"`
}

// ServerConfig contains HTTP API server configuration
type ServerConfig struct {
	Addr               string `yaml:"addr" env:"ADDR" validate:"required"`
	MaxUploadMB        int    `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB" validate:"gt=0"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec" env:"SHUTDOWN_TIMEOUT_SEC" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=text json"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	p := slicer.DefaultParams()
	return &Config{
		Slicer: SlicerConfig{
			ThresholdDB:   p.ThresholdDB,
			MinLengthMs:   p.MinLengthMs,
			MinIntervalMs: p.MinIntervalMs,
			HopSizeMs:     p.HopSizeMs,
			MaxSilKeptMs:  p.MaxSilKeptMs,
		},
		Server: ServerConfig{
			Addr:               ":8080",
			MaxUploadMB:        256,
			ShutdownTimeoutSec: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any)
// and the AUDIO_SLICER_* environment. The result is not validated.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with a custom environment source.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReadConfig, err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrReadConfig, path, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           cfg,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, env),
		DefaultOverwrite: true,
	}); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrReadConfig, err)
	}

	return cfg, nil
}

// Params converts the slicer section into slicer.Params
func (c *Config) Params() slicer.Params {
	return slicer.Params{
		ThresholdDB:   c.Slicer.ThresholdDB,
		MinLengthMs:   c.Slicer.MinLengthMs,
		MinIntervalMs: c.Slicer.MinIntervalMs,
		HopSizeMs:     c.Slicer.HopSizeMs,
		MaxSilKeptMs:  c.Slicer.MaxSilKeptMs,
	}
}

// S3Enabled returns true if an S3 bucket is configured.
func (c *Config) S3Enabled() bool {
	return c.S3.Bucket != ""
}

// S3Sink returns the output.S3Config for the S3 section
func (c *Config) S3Sink() output.S3Config {
	return output.S3Config{
		Bucket:          c.S3.Bucket,
		Region:          c.S3.Region,
		Prefix:          c.S3.Prefix,
		Endpoint:        c.S3.Endpoint,
		AccessKeyID:     c.S3.AccessKeyID,
		SecretAccessKey: c.S3.SecretAccessKey,
		KeepLocal:       c.S3.KeepLocal,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the ordering constraints between the slicer durations
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// String returns a string representation of the config with credentials masked.
func (c *Config) String() string {
	secret := ""
	if c.S3.SecretAccessKey != "" {
		secret = "***"
	}
	return fmt.Sprintf(
		"Config{DBThresh: %.1f, MinLength: %d, MinInterval: %d, HopSize: %d, MaxSilKept: %d, OutDir: %q, Workers: %d, S3Bucket: %q, S3Region: %q, S3Secret: %q, Addr: %q, LogLevel: %s, LogFormat: %s}",
		c.Slicer.ThresholdDB,
		c.Slicer.MinLengthMs,
		c.Slicer.MinIntervalMs,
		c.Slicer.HopSizeMs,
		c.Slicer.MaxSilKeptMs,
		c.Output.Dir,
		c.Output.Workers,
		c.S3.Bucket,
		c.S3.Region,
		secret,
		c.Server.Addr,
		c.Logging.Level,
		c.Logging.Format,
	)
}

// NewLogger creates a structured logger writing to w.
// When Format is "json", it outputs JSON logs; otherwise human-readable text.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(l.Level)}

	var handler slog.Handler
	if strings.ToLower(l.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
