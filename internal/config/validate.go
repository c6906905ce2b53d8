package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Pipeline bounds
	if c.Pipeline.EvalHistoryCap < 1 {
		errs = append(errs, "PIPELINE_EVAL_HISTORY_CAP must be positive")
	}
	if c.Pipeline.SessionDatesCap < 1 {
		errs = append(errs, "PIPELINE_SESSION_DATES_CAP must be positive")
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, "PIPELINE_WORKERS must be positive")
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, "GATEWAY_TIMEOUT must be positive")
	}

	// Gateway API key: warn only. The pipeline degrades to deterministic
	// fallbacks without it, which is useful for local development.
	if c.Gateway.APIKey == "" {
		slog.Warn("GATEWAY_API_KEY is empty, all model calls will fall back to defaults")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
