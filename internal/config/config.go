// Package config loads the server configuration from YAML with sane defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/stepsync/pkg/domain"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Tracks selects the track set: basic or extended.
	Tracks string `yaml:"tracks"`
	// DefaultTempo is the BPM the document starts with.
	DefaultTempo int `yaml:"default_tempo"`
	// ClientQueueSize bounds each client's outbound queue.
	ClientQueueSize int `yaml:"client_queue_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		Tracks:          string(domain.VariantExtended),
		DefaultTempo:    domain.DefaultTempo,
		ClientQueueSize: 64,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged; a missing file is an error so typos do not silently
// fall back.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that have a closed set of valid values and
// normalizes the tempo into range.
func (c *Config) Validate() error {
	switch domain.Variant(c.Tracks) {
	case domain.VariantBasic, domain.VariantExtended:
	default:
		return fmt.Errorf("invalid tracks variant %q (want basic or extended)", c.Tracks)
	}
	if c.ClientQueueSize <= 0 {
		return fmt.Errorf("client_queue_size must be positive, got %d", c.ClientQueueSize)
	}
	c.DefaultTempo = domain.ClampTempo(c.DefaultTempo)
	return nil
}

// Variant returns the configured track set.
func (c Config) Variant() domain.Variant {
	return domain.Variant(c.Tracks)
}
