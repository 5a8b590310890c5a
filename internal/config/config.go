// Package config loads application configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	// Owner is the account identifier all records are scoped to.
	Owner string `mapstructure:"owner"`

	// DBPath is the local SQLite database path.
	DBPath string `mapstructure:"db_path"`

	// Mode selects the startup operating mode: local-only, remote-only
	// or synchronized.
	Mode string `mapstructure:"mode"`

	Remote    RemoteConfig    `mapstructure:"remote"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Log       LogConfig       `mapstructure:"log"`
	Coach     CoachConfig     `mapstructure:"coach"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
}

// RemoteConfig describes the remote database the sync engine pushes to.
type RemoteConfig struct {
	// URL is the libsql database URL (libsql://... or file:... for testing).
	URL string `mapstructure:"url"`

	// AuthToken authenticates against the remote database.
	AuthToken string `mapstructure:"auth_token"`

	// ProbeURL, when set, is checked with an HTTP HEAD request to decide
	// whether the app is online. Empty falls back to pinging the remote.
	ProbeURL string `mapstructure:"probe_url"`
}

// SyncConfig tunes the reconciliation engine.
type SyncConfig struct {
	// RetryAttempts is the number of delivery attempts per queue entry.
	RetryAttempts int `mapstructure:"retry_attempts"`

	// RetryInitialMS is the initial backoff in milliseconds.
	RetryInitialMS int `mapstructure:"retry_initial_ms"`

	// IntervalSeconds is the daemon's periodic sync interval.
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// LogConfig configures log output.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Quiet      bool   `mapstructure:"quiet"`
}

// CoachConfig configures the AI coaching assistant.
type CoachConfig struct {
	// APIKey for the Anthropic API. Defaults to ANTHROPIC_API_KEY.
	APIKey string `mapstructure:"api_key"`

	// Model name. Empty uses the SDK default.
	Model string `mapstructure:"model"`

	// MaxTokens caps the length of coaching replies (default: 1024).
	MaxTokens int `mapstructure:"max_tokens"`
}

// DashboardConfig configures the monitoring WebSocket server.
type DashboardConfig struct {
	Port int `mapstructure:"port"`
}

// DaemonConfig configures the background sync daemon.
type DaemonConfig struct {
	// InboxDir is watched for dropped record files. Empty disables the watcher.
	InboxDir string `mapstructure:"inbox_dir"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Owner:  "default",
		DBPath: filepath.Join(home, ".stride", "stride.db"),
		Mode:   "synchronized",
		Sync: SyncConfig{
			RetryAttempts:   3,
			RetryInitialMS:  500,
			IntervalSeconds: 300,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Coach: CoachConfig{
			MaxTokens: 1024,
		},
		Dashboard: DashboardConfig{
			Port: 8080,
		},
	}
}

// DefaultPath returns the path of the user-level config file.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stride", "config.yaml")
}

// Load reads the config file at path, layering it over defaults.
// An empty path uses DefaultPath. A missing file is not an error.
// Environment variables prefixed STRIDE_ override file values
// (e.g. STRIDE_REMOTE_AUTH_TOKEN).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STRIDE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			applyEnvFallbacks(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvFallbacks(cfg)
	return cfg, nil
}

// applyEnvFallbacks fills secrets from well-known environment variables
// so they never need to live in the config file.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Remote.AuthToken == "" {
		cfg.Remote.AuthToken = os.Getenv("TURSO_AUTH_TOKEN")
	}
	if cfg.Coach.APIKey == "" {
		cfg.Coach.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}
