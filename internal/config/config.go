// Package config loads tool configuration from an optional YAML file
// with sane defaults, matching the reference paths (~/.local/share/rnnoise).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config holds the tool configuration
type Config struct {
	// InstallPath is the directory the RNNoise plugin is installed under
	InstallPath string `yaml:"install_path"`

	// Control is the noise suppression strength passed to the LADSPA
	// plugin, 0-100 (default: 95)
	Control int `yaml:"control"`

	// SampleRate of the null sink in Hz (default: 48000, the rate
	// RNNoise operates at)
	SampleRate int `yaml:"sample_rate"`

	// MonitorLatencyMsec is the latency of the monitor loopback (default: 1)
	MonitorLatencyMsec int `yaml:"monitor_latency_msec"`

	// Pactl is the pactl binary to invoke (default: "pactl")
	Pactl string `yaml:"pactl"`

	// TimeoutSeconds bounds every pactl call (default: 10, 0 = no timeout)
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DefaultConfig returns the configuration used when no config file exists
func DefaultConfig() *Config {
	return &Config{
		InstallPath:        filepath.Join(xdg.DataHome, "rnnoise"),
		Control:            95,
		SampleRate:         48000,
		MonitorLatencyMsec: 1,
		Pactl:              "pactl",
		TimeoutSeconds:     10,
	}
}

// Load reads the config file from $XDG_CONFIG_HOME/rnnoise/config.yaml
// if present, applies environment overrides, and validates the result.
func Load() (*Config, error) {
	return LoadFile(filepath.Join(xdg.ConfigHome, "rnnoise", "config.yaml"))
}

// LoadFile loads configuration from the given path. A missing file is
// not an error; defaults are used.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config values from the environment. The .env file
// loaded at startup feeds into these.
func (c *Config) applyEnv() {
	if v := os.Getenv("RNNOISE_PATH"); v != "" {
		c.InstallPath = v
	}
	if v := os.Getenv("RNNOISE_PACTL"); v != "" {
		c.Pactl = v
	}
	if v := os.Getenv("RNNOISE_CONTROL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Control = n
		}
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Control < 0 || c.Control > 100 {
		return fmt.Errorf("config: control must be 0-100, got %d", c.Control)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.MonitorLatencyMsec < 0 {
		return fmt.Errorf("config: monitor_latency_msec must not be negative, got %d", c.MonitorLatencyMsec)
	}
	if c.Pactl == "" {
		return errors.New("config: pactl binary name must not be empty")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("config: timeout_seconds must not be negative, got %d", c.TimeoutSeconds)
	}
	return nil
}

// Timeout returns the per-call pactl timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
