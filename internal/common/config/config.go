// internal/common/config/config.go
package config

import "strings"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Backend       BackendConfig      `mapstructure:"backend"`
	Identity      IdentityConfig     `mapstructure:"identity"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Watch         WatchConfig        `mapstructure:"watch"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig points at the coordination REST API.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// GetBaseURL returns the base URL without a trailing slash.
func (b BackendConfig) GetBaseURL() string {
	return strings.TrimSuffix(b.BaseURL, "/")
}

// IdentityConfig holds the identity-provider project credentials.
type IdentityConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// GetBaseURL returns the base URL without a trailing slash.
func (i IdentityConfig) GetBaseURL() string {
	return strings.TrimSuffix(i.BaseURL, "/")
}

// NotificationConfig holds poller settings.
type NotificationConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
}

// RedisConfig holds the optional seen-notification tracker store.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listen_address"`
}

// WatchConfig holds the daemon's own account credentials. The password is
// only ever supplied via environment.
type WatchConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
