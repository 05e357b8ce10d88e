// Package config provides configuration management for eOVPN.
// It handles loading, saving, and managing application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/albanobattistella/eOVPN/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// Remote is the URL of the ZIP archive holding the OpenVPN configs.
	Remote string `yaml:"remote"`
	// RemoteSavePath is the directory the remote archive is extracted into.
	RemoteSavePath string `yaml:"remote_savepath"`
	// CACert is passed as --ca when set.
	CACert string `yaml:"crt,omitempty"`
	// Username is the account name stored alongside the keyring password.
	Username string `yaml:"username,omitempty"`
	// TimeoutSeconds bounds connect and disconnect polling.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// OpenVPNBinary is the openvpn executable name or path.
	OpenVPNBinary string `yaml:"openvpn_binary"`
	// EscalationCommand runs privileged commands (pkexec by default).
	EscalationCommand string `yaml:"escalation_command"`
	// TunnelPrefix identifies tunnel interfaces by name.
	TunnelPrefix string `yaml:"tunnel_prefix"`
	// ShowNotifications enables desktop notifications for session events.
	ShowNotifications bool `yaml:"show_notifications"`
	// LastUpdateTimestamp records the last successful remote update.
	LastUpdateTimestamp string `yaml:"last_update_timestamp,omitempty"`

	path string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RemoteSavePath:    filepath.Join("~", ".config", common.ConfigDirName, common.ConfigsDirName),
		TimeoutSeconds:    int(common.ConnectionTimeout / time.Second),
		OpenVPNBinary:     common.DefaultOpenVPNBinary,
		EscalationCommand: common.DefaultEscalationCommand,
		TunnelPrefix:      common.DefaultTunnelPrefix,
		ShowNotifications: true,
	}
}

// Path returns the default configuration file path.
func Path() (string, error) {
	homeDir, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", common.ConfigDirName, common.ConfigFileName), nil
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from configPath, writing defaults there
// when the file is missing.
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.path = configPath
		if err := cfg.Save(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: error parsing configuration: %v", common.ErrConfigLoad, err)
	}

	cfg.validate()
	cfg.path = configPath
	return cfg, nil
}

// validate replaces unusable values with their defaults.
func (c *Config) validate() {
	defaults := DefaultConfig()
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if c.OpenVPNBinary == "" {
		c.OpenVPNBinary = defaults.OpenVPNBinary
	}
	if c.EscalationCommand == "" {
		c.EscalationCommand = defaults.EscalationCommand
	}
	if c.TunnelPrefix == "" {
		c.TunnelPrefix = defaults.TunnelPrefix
	}
	if c.RemoteSavePath == "" {
		c.RemoteSavePath = defaults.RemoteSavePath
	}
}

// Save saves the configuration to the file it was loaded from.
func (c *Config) Save() error {
	configPath := c.path
	if configPath == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		configPath = p
		c.path = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %v", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Timeout returns the connect/disconnect timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SaveDir returns RemoteSavePath with ~ expanded.
func (c *Config) SaveDir() string {
	return common.ExpandPath(c.RemoteSavePath)
}

// CACertPath returns CACert with ~ expanded, or "" when unset.
func (c *Config) CACertPath() string {
	return common.ExpandPath(c.CACert)
}

// MarkUpdated records t as the last successful remote update.
func (c *Config) MarkUpdated(t time.Time) {
	c.LastUpdateTimestamp = t.Format("2006-01-02 15:04:05")
}
