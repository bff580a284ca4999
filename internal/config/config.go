// Package config loads relay settings from an optional yaml file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Valid listen port range for the relay.
const (
	MinPort = 1024
	MaxPort = 49151
)

// Config holds all relay settings.
type Config struct {
	ListenPort        int    `yaml:"listen_port"`
	APIBaseURL        string `yaml:"api_base_url"`
	APIUsername       string `yaml:"api_username"`
	APIPassword       string `yaml:"api_password"`
	TickSeconds       int    `yaml:"tick_seconds"`
	NATSURL           string `yaml:"nats_url"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`
	LogLevel          string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenPort:  8080,
		TickSeconds: 10,
		LogLevel:    "info",
	}
}

// Load reads the yaml file at path (skipped when path is empty), applies
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ListenPort = getEnvAsInt("RELAY_PORT", c.ListenPort)
	c.APIBaseURL = getEnv("RELAY_API_BASE_URL", c.APIBaseURL)
	c.APIUsername = getEnv("RELAY_API_USERNAME", c.APIUsername)
	c.APIPassword = getEnv("RELAY_API_PASSWORD", c.APIPassword)
	c.TickSeconds = getEnvAsInt("RELAY_TICK_SECONDS", c.TickSeconds)
	c.NATSURL = getEnv("RELAY_NATS_URL", c.NATSURL)
	c.NATSSubjectPrefix = getEnv("RELAY_NATS_SUBJECT_PREFIX", c.NATSSubjectPrefix)
	c.LogLevel = getEnv("RELAY_LOG_LEVEL", c.LogLevel)
}

// Validate checks the settings a running relay cannot do without.
func (c Config) Validate() error {
	if c.ListenPort < MinPort || c.ListenPort > MaxPort {
		return fmt.Errorf("listen port must be in the range %d-%d, got %d", MinPort, MaxPort, c.ListenPort)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if c.TickSeconds <= 0 {
		return fmt.Errorf("tick_seconds must be positive, got %d", c.TickSeconds)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
