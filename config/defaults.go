package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "https://api.gitgafit.com")
	v.SetDefault("api.rate_limit_rps", 10.0) // Polite ceiling on backend calls

	// Realtime defaults
	v.SetDefault("realtime.url", "wss://api.gitgafit.com/ws")
	v.SetDefault("realtime.reconnect_attempts", 5)
	v.SetDefault("realtime.reconnect_backoff_seconds", 1)

	// Database defaults
	v.SetDefault("database.path", "gitgafit.db")

	// Push defaults
	v.SetDefault("push.worker_socket", "/tmp/gitgafit-push-worker.sock")
	v.SetDefault("push.token_endpoint", "/api/push/token")
	v.SetDefault("push.app_config", "")

	// Job tracking defaults
	v.SetDefault("jobs.retention_hours", 24)    // Prune in-flight jobs older than a day at hydrate
	v.SetDefault("jobs.alert_grace_seconds", 5) // How long a finished job stays visible after its alert

	// Log defaults
	v.SetDefault("log.json", false)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("api.token", "GITGAFIT_API_TOKEN")
}
