// Package tlconfig loads the engine's YAML configuration, in the same
// shape as References/orion-prototipe/internal/config: a Load function
// doing os.ReadFile + yaml.Unmarshal + Validate, returning a wrapped
// error at each step.
package tlconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries registry-wide defaults for the reader registry, frame
// cache, and logging, loaded once at program start and passed down to
// the components that need it.
type Config struct {
	Reader  ReaderConfig  `yaml:"reader"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// ReaderConfig configures the Reader Registry's default open options.
type ReaderConfig struct {
	// ThreadCount is the default SequenceIO/ThreadCount option passed to
	// plugins that honor it (0 means "let the plugin decide").
	ThreadCount int `yaml:"thread_count"`
	// DefaultSpeedFallback is the frame rate assumed for a sequence
	// reader when the timeline does not specify one.
	DefaultSpeedFallback float64 `yaml:"default_speed_fallback"`
}

// CacheConfig configures the Frame Cache's read-ahead/read-behind policy.
type CacheConfig struct {
	ReadAheadSeconds  float64 `yaml:"read_ahead_seconds"`
	ReadBehindSeconds float64 `yaml:"read_behind_seconds"`
}

// LoggingConfig holds a slog handler level. Load and Validate check it,
// but cmd/tlplay does not apply it: that binary's log level comes from
// its --debug flag.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Debug bool   `yaml:"debug"`
}

// Default returns the built-in defaults, used when no config file is
// given, mirroring the original player's hard-coded 2-second read-ahead
// / 0.5-second read-behind defaults.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			ThreadCount:          0,
			DefaultSpeedFallback: 24.0,
		},
		Cache: CacheConfig{
			ReadAheadSeconds:  2.0,
			ReadBehindSeconds: 0.5,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and parses a YAML configuration file, validating it before
// returning.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks field ranges that YAML decoding alone can't enforce.
func Validate(cfg *Config) error {
	if cfg.Reader.ThreadCount < 0 {
		return fmt.Errorf("reader.thread_count must be >= 0, got %d", cfg.Reader.ThreadCount)
	}
	if cfg.Reader.DefaultSpeedFallback <= 0 {
		return fmt.Errorf("reader.default_speed_fallback must be > 0, got %f", cfg.Reader.DefaultSpeedFallback)
	}
	if cfg.Cache.ReadAheadSeconds < 0 || cfg.Cache.ReadBehindSeconds < 0 {
		return fmt.Errorf("cache read-ahead/read-behind must be >= 0")
	}
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	return nil
}
