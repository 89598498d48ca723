// Package config manages TAKForge configuration via Viper: a TOML config
// file, TAKFORGE_* environment overrides, and built-in defaults.
package config

// Config represents the core TAKForge configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Engine     EngineConfig     `mapstructure:"engine"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
}

// DatabaseConfig configures the SQLite database holding the provenance
// registry and oracle usage accounting.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PathsConfig configures filesystem locations for run inputs and outputs
type PathsConfig struct {
	Catalog   string `mapstructure:"catalog"`   // definitions catalog (YAML)
	Templates string `mapstructure:"templates"` // directory of per-concept-type skeletons
	Output    string `mapstructure:"output"`    // artifact output root, namespaced by concept type
}

// EngineConfig configures the generate-validate-retry engine
type EngineConfig struct {
	MaxAttempts     int  `mapstructure:"max_attempts"`     // generation attempts per definition (default: 3)
	Workers         int  `mapstructure:"workers"`          // concurrent definitions in flight (default: 1)
	WatchTemplates  bool `mapstructure:"watch_templates"`  // reload templates on change between definitions
	OracleTimeoutMS int  `mapstructure:"oracle_timeout_ms"` // per-call deadline (default: 120000)
}

// OpenRouterConfig configures the OpenRouter oracle adapter
type OpenRouterConfig struct {
	APIKey            string  `mapstructure:"api_key"` // set via TAKFORGE_OPENROUTER_API_KEY
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"` // oracle rate limit (0 = unlimited)
}
