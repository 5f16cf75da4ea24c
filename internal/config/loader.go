package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sshwatch/internal/types"
)

const (
	DefaultConfigPath   = "/etc/sshwatch/config.yml"
	DefaultAuthLogPath  = "/var/log/auth.log"
	DefaultPollInterval = 300 * time.Millisecond
	DefaultUserWidth    = 10
	DefaultThreshold    = 5
	DefaultWindow       = time.Hour
	DefaultDBPath       = "/var/lib/sshwatch/events.db"
	DefaultMetricsAddr  = ":9090"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

func invalid(field string, value interface{}) error {
	return fmt.Errorf("%w: field=%s value=%v", ErrInvalidConfig, field, value)
}

// Default returns the configuration used when no file is present.
func Default() *types.Config {
	var cfg types.Config
	applyDefaults(&cfg)
	return &cfg
}

// LoadConfig reads the configuration from the given path
func LoadConfig(path string) (*types.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg types.Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists. A missing file yields the
// defaults unless required is set.
func LoadOrDefault(path string, required bool) (*types.Config, error) {
	cfg, err := LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if !required && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

// validateConfig applies defaults and hard rules
func validateConfig(cfg *types.Config) error {
	applyDefaults(cfg)

	switch cfg.Output.Format {
	case "text", "json":
	default:
		return invalid("output.format", cfg.Output.Format)
	}
	switch cfg.Output.Color {
	case "auto", "always", "never":
	default:
		return invalid("output.color", cfg.Output.Color)
	}
	if cfg.Output.UserWidth < 0 {
		return invalid("output.user_width", cfg.Output.UserWidth)
	}
	if cfg.Input.PollInterval < 0 {
		return invalid("input.poll_interval", cfg.Input.PollInterval)
	}
	if cfg.Detection.BruteForceThreshold < 0 {
		return invalid("detection.brute_force_threshold", cfg.Detection.BruteForceThreshold)
	}
	if cfg.Detection.BruteForceWindow < 0 {
		return invalid("detection.brute_force_window", cfg.Detection.BruteForceWindow)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", cfg.Logging.Level)
	}
	return nil
}

func applyDefaults(cfg *types.Config) {
	if cfg.Input.AuthLogPath == "" {
		cfg.Input.AuthLogPath = DefaultAuthLogPath
	}
	if cfg.Input.PollInterval == 0 {
		cfg.Input.PollInterval = DefaultPollInterval
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "text"
	}
	if cfg.Output.Color == "" {
		cfg.Output.Color = "auto"
	}
	if cfg.Output.UserWidth == 0 {
		cfg.Output.UserWidth = DefaultUserWidth
	}
	if cfg.Detection.BruteForceThreshold == 0 {
		cfg.Detection.BruteForceThreshold = DefaultThreshold
	}
	if cfg.Detection.BruteForceWindow == 0 {
		cfg.Detection.BruteForceWindow = DefaultWindow
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = DefaultDBPath
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 10
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 28
	}
}

// Validate re-checks a configuration after flag overrides were applied.
func Validate(cfg *types.Config) error {
	return validateConfig(cfg)
}
