package config

import "github.com/clinsight/takforge/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Engine.MaxAttempts <= 0 {
		return errors.Newf("engine.max_attempts must be > 0, got %d", c.Engine.MaxAttempts)
	}
	if c.Engine.Workers <= 0 {
		return errors.Newf("engine.workers must be > 0, got %d", c.Engine.Workers)
	}
	if c.Engine.OracleTimeoutMS <= 0 {
		return errors.Newf("engine.oracle_timeout_ms must be > 0, got %d", c.Engine.OracleTimeoutMS)
	}

	if c.Paths.Catalog == "" {
		return errors.New("paths.catalog cannot be empty")
	}
	if c.Paths.Templates == "" {
		return errors.New("paths.templates cannot be empty")
	}
	if c.Paths.Output == "" {
		return errors.New("paths.output cannot be empty")
	}

	if c.OpenRouter.Model == "" {
		return errors.New("openrouter.model cannot be empty")
	}
	if c.OpenRouter.Temperature < 0 || c.OpenRouter.Temperature > 2 {
		return errors.Newf("openrouter.temperature must be in [0, 2], got %f", c.OpenRouter.Temperature)
	}
	if c.OpenRouter.MaxTokens <= 0 {
		return errors.Newf("openrouter.max_tokens must be > 0, got %d", c.OpenRouter.MaxTokens)
	}
	if c.OpenRouter.RequestsPerMinute < 0 {
		return errors.Newf("openrouter.requests_per_minute must be >= 0, got %d", c.OpenRouter.RequestsPerMinute)
	}

	return nil
}
