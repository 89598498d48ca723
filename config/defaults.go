package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "takforge.db")

	// Path defaults
	v.SetDefault("paths.catalog", "taks.yaml")
	v.SetDefault("paths.templates", "templates")
	v.SetDefault("paths.output", "TAKs")

	// Engine defaults
	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.workers", 1)
	v.SetDefault("engine.watch_templates", false)
	v.SetDefault("engine.oracle_timeout_ms", 120000)

	// OpenRouter defaults
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini") // Cost-effective default
	v.SetDefault("openrouter.temperature", 0.2)            // Deterministic
	v.SetDefault("openrouter.max_tokens", 4000)            // TAK artifacts run long
	v.SetDefault("openrouter.requests_per_minute", 20)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("openrouter.api_key", "TAKFORGE_OPENROUTER_API_KEY")
}
