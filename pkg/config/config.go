// Package config loads the torctl configuration from a YAML file, with
// defaults merged in and environment overrides applied on top.
package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/onionops/torctl/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config is the torctl root configuration.
type Config struct {
	Tor Tor `yaml:"tor"`

	// Instances is how many independent tor proxies `torctl up` runs.
	Instances int `yaml:"instances"`
}

// Tor configures the managed daemon.
type Tor struct {
	// Path to the tor executable.
	Path string `yaml:"path"`

	// SocksPort fixes the SOCKS port. 0 means allocate an ephemeral one.
	SocksPort int `yaml:"socks_port"`

	// ControlPort fixes the control port. 0 means allocate an ephemeral one.
	ControlPort int `yaml:"control_port"`

	// Options are extra tor settings, each passed as "--key value".
	Options map[string]string `yaml:"options"`

	// ReadyTimeoutSeconds bounds the wait for tor to accept connections.
	ReadyTimeoutSeconds int `yaml:"ready_timeout_seconds"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Tor: Tor{
			Path:                "tor",
			ReadyTimeoutSeconds: int(constants.DefaultReadyTimeout.Seconds()),
		},
		Instances: 1,
	}
}

// Load reads the config file at path, fills gaps from Default, and applies
// environment overrides. A missing config file is not an error: defaults
// plus environment are used. A .env file in the working directory is loaded
// first if present.
func Load(path string) (*Config, error) {
	// Best-effort: absence of a .env file is the common case.
	_ = godotenv.Load(constants.DefaultEnvFile)

	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := mergo.Merge(cfg, *Default()); err != nil {
		return nil, fmt.Errorf("failed to merge defaults: %w", err)
	}

	if torPath := os.Getenv(constants.EnvTorPath); torPath != "" {
		cfg.Tor.Path = torPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that the merge cannot express.
func (c *Config) Validate() error {
	if c.Tor.Path == "" {
		return errors.New("tor.path must be set")
	}

	if c.Instances < 1 {
		return fmt.Errorf("instances must be at least 1, got %d", c.Instances)
	}

	if c.Tor.SocksPort != 0 && c.Tor.SocksPort == c.Tor.ControlPort {
		return fmt.Errorf("tor.socks_port and tor.control_port must differ (both %d)", c.Tor.SocksPort)
	}

	if c.Instances > 1 && (c.Tor.SocksPort != 0 || c.Tor.ControlPort != 0) {
		return errors.New("fixed ports cannot be combined with multiple instances")
	}

	return nil
}
