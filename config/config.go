// Package config provides configuration management for VPN Client.
// It handles loading, saving, and managing application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/vpn-client/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// APIBaseURL is the base URL of the VPN service REST API.
	APIBaseURL string `yaml:"api_base_url"`
	// ServerReloadInterval is how often the server list is refreshed, in seconds.
	ServerReloadInterval int `yaml:"server_reload_interval"`
	// BackoffBaseSeconds is the base delay of the retry backoff, in seconds.
	BackoffBaseSeconds int `yaml:"backoff_base_seconds"`
	// BackoffRandomness is the multiplicative jitter amplitude of the retry
	// backoff, in the range [0, 1).
	BackoffRandomness float64 `yaml:"backoff_randomness"`
	// BackoffMaxDelaySeconds caps the retry backoff delay. Zero means no cap,
	// which lets delays grow without bound for large attempt counts.
	BackoffMaxDelaySeconds int `yaml:"backoff_max_delay_seconds"`
	// AutoReconnect automatically reconnects when the connection drops.
	AutoReconnect bool `yaml:"auto_reconnect"`
	// PortForwarding enables automatic NAT-PMP port forwarding.
	PortForwarding bool `yaml:"port_forwarding"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// MinimizeToTray keeps the client running in the tray when the UI closes.
	MinimizeToTray bool `yaml:"minimize_to_tray"`
	// ConnectCommand is the external command used to establish a VPN
	// connection. Occurrences of {server} are replaced with the server ID.
	ConnectCommand []string `yaml:"connect_command,omitempty"`
	// DisconnectCommand is the external command used to tear the
	// connection down.
	DisconnectCommand []string `yaml:"disconnect_command,omitempty"`
}

// DefaultConfig returns the default configuration.
// These are sensible defaults for most users.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:             "https://api.vpnclient.example.com",
		ServerReloadInterval:   int(common.ServerReloadInterval / time.Second),
		BackoffBaseSeconds:     int(common.DefaultBackoffBase / time.Second),
		BackoffRandomness:      common.RefreshRandomness,
		BackoffMaxDelaySeconds: 0,
		AutoReconnect:          true,
		PortForwarding:         false,
		ShowNotifications:      true,
		MinimizeToTray:         true,
	}
}

// Load loads the configuration from the default config file location.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from the given path.
// If the file doesn't exist, it creates one with default values.
func LoadFrom(configPath string) (*Config, error) {
	if !common.FileExists(configPath) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(configPath); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	var config Config
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate verifies that configuration values are valid, falling back to
// defaults for out-of-range values.
func (c *Config) validate() error {
	defaults := DefaultConfig()

	if c.APIBaseURL == "" {
		c.APIBaseURL = defaults.APIBaseURL
	}
	if c.ServerReloadInterval <= 0 {
		c.ServerReloadInterval = defaults.ServerReloadInterval
	}
	if c.BackoffBaseSeconds <= 0 {
		c.BackoffBaseSeconds = defaults.BackoffBaseSeconds
	}
	if c.BackoffRandomness < 0 || c.BackoffRandomness >= 1 {
		c.BackoffRandomness = defaults.BackoffRandomness
	}
	if c.BackoffMaxDelaySeconds < 0 {
		c.BackoffMaxDelaySeconds = 0
	}
	return nil
}

// ReloadInterval returns the server reload interval as a duration.
func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.ServerReloadInterval) * time.Second
}

// BackoffBase returns the backoff base delay as a duration.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

// BackoffMaxDelay returns the backoff cap as a duration; zero means uncapped.
func (c *Config) BackoffMaxDelay() time.Duration {
	return time.Duration(c.BackoffMaxDelaySeconds) * time.Second
}

// Save saves the configuration to the default config file location.
func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to the given path.
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	return nil
}

func getConfigPath() (string, error) {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, common.ConfigFileName), nil
}
