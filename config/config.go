// Package config loads the agent configuration from TOML with environment
// variable overrides.
package config

import "time"

// Config represents the agent configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Database DatabaseConfig `mapstructure:"database"`
	Push     PushConfig     `mapstructure:"push"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig configures the backend API client
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Token is bound to GITGAFIT_API_TOKEN and never read from the file
	Token string `mapstructure:"token"`
	// RateLimitRPS throttles outgoing API requests; <= 0 disables
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
}

// RealtimeConfig configures the websocket event channel
type RealtimeConfig struct {
	URL                     string `mapstructure:"url"`
	ReconnectAttempts       int    `mapstructure:"reconnect_attempts"`
	ReconnectBackoffSeconds int    `mapstructure:"reconnect_backoff_seconds"`
}

// ReconnectBackoff returns the fixed delay between reconnect attempts.
func (c RealtimeConfig) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffSeconds) * time.Second
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PushConfig configures push notification delivery
type PushConfig struct {
	WorkerSocket  string `mapstructure:"worker_socket"`
	TokenEndpoint string `mapstructure:"token_endpoint"`
	// AppConfig is the push-service configuration handed to the background
	// worker, as a JSON document.
	AppConfig string `mapstructure:"app_config"`
}

// JobsConfig configures generation job tracking
type JobsConfig struct {
	RetentionHours    int `mapstructure:"retention_hours"`
	AlertGraceSeconds int `mapstructure:"alert_grace_seconds"`
}

// Retention returns how long persisted in-flight jobs survive before the
// hydrate-time collector prunes them.
func (c JobsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// AlertGrace returns how long a terminal job stays visible after its alert
// before it is auto-cleared.
func (c JobsConfig) AlertGrace() time.Duration {
	return time.Duration(c.AlertGraceSeconds) * time.Second
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}
