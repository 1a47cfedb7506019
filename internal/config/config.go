// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/maauso/motionphoto/internal/motion"
)

// Static errors for configuration validation.
var (
	// ErrInvalidCollisionPolicy is returned when COLLISION_POLICY is unknown.
	ErrInvalidCollisionPolicy = errors.New("config: COLLISION_POLICY must be overwrite, fail or rename")
	// ErrInvalidValue is returned when a numeric or enumerated setting is out of range.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`

	// Storage settings
	TempDir   string `env:"TEMP_DIR, default=/tmp/motionphoto" json:"temp_dir" validate:"required"`
	MediaRoot string `env:"MEDIA_ROOT" json:"media_root,omitempty"`

	// Extraction settings
	CollisionPolicy string `env:"COLLISION_POLICY, default=overwrite" json:"collision_policy"`
	ScanWorkers     int    `env:"SCAN_WORKERS, default=4" json:"scan_workers" validate:"min=1,max=64"`
	WatchSettleMs   int    `env:"WATCH_SETTLE_MS, default=1500" json:"watch_settle_ms" validate:"min=1"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json TEXT JSON"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
	LogFile   string `env:"LOG_FILE" json:"log_file,omitempty"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Collision returns the configured collision policy.
// Load has already rejected unknown values.
func (c *Config) Collision() motion.CollisionPolicy {
	p, err := motion.ParseCollisionPolicy(c.CollisionPolicy)
	if err != nil {
		return motion.CollisionOverwrite
	}
	return p
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := motion.ParseCollisionPolicy(c.CollisionPolicy); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCollisionPolicy, c.CollisionPolicy)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs. When LogFile is set,
// records are also appended to a size-rotated file.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is like NewLogger but writes to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	out := w
	if c.LogFile != "" {
		out = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, MediaRoot: %s, CollisionPolicy: %s, ScanWorkers: %d, WatchSettleMs: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s, LogFile: %s}",
		c.Port,
		c.TempDir,
		c.MediaRoot,
		c.CollisionPolicy,
		c.ScanWorkers,
		c.WatchSettleMs,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
		c.LogFile,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
