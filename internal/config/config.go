// Package config loads stillsync settings from a config file, environment
// variables, and defaults, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all stillsync settings.
type Config struct {
	// APIBaseURL is the wellness service endpoint.
	APIBaseURL string `mapstructure:"api_base_url"`

	// StateDir holds the local database and logs. Defaults to
	// ~/.stillsync.
	StateDir string `mapstructure:"state_dir"`

	// RequestTimeout bounds each remote call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// ReplayInterval is the periodic retry cadence for the pending
	// queue. Zero disables the timer; replay still runs on reconnect.
	ReplayInterval time.Duration `mapstructure:"replay_interval"`

	// DashboardPort is the local WebSocket dashboard port.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogMaxSizeMB caps the size of stillsync.log before rotation.
	LogMaxSizeMB int `mapstructure:"log_max_size_mb"`

	// LogMaxBackups is the number of rotated log files to keep.
	LogMaxBackups int `mapstructure:"log_max_backups"`
}

// DBPath returns the SQLite database path under the state directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.StateDir, "stillsync.db")
}

// LogPath returns the log file path under the state directory.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir, "stillsync.log")
}

// Load reads configuration from stillsync.yaml (in the state dir and the
// working directory), STILLSYNC_* environment variables, and built-in
// defaults. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaultStateDir := filepath.Join(home, ".stillsync")

	v.SetDefault("api_base_url", "https://api.stillapp.io")
	v.SetDefault("state_dir", defaultStateDir)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("replay_interval", 30*time.Second)
	v.SetDefault("dashboard_port", 7878)
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)

	v.SetConfigName("stillsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(defaultStateDir)
	v.AddConfigPath(filepath.Join(home, ".config", "stillsync"))

	v.SetEnvPrefix("STILLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.DashboardPort < 0 || c.DashboardPort > 65535 {
		return fmt.Errorf("dashboard_port %d out of range", c.DashboardPort)
	}
	return nil
}
