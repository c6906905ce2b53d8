package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "synapse",
			Password: "secret", Name: "synapse", SSLMode: "disable", MaxConns: 25,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		JWT: JWTConfig{
			AccessSecret:  "access-secret-that-is-at-least-32-chars!",
			RefreshSecret: "refresh-secret-that-is-at-least-32-chr!",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
		},
		Gateway: GatewayConfig{APIKey: "key", Model: "gemini-2.5-flash", Timeout: 25 * time.Second},
		Pipeline: PipelineConfig{
			RecentTurns: 5, EvalHistoryCap: 20, SessionDatesCap: 100,
			QueueSize: 256, Workers: 4, ShortTermTTLSec: 86400, TraitRecalcEvery: 5,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_JWTAccessSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected JWT_ACCESS_SECRET error, got: %v", err)
	}
}

func TestValidate_JWTSecretsMustDiffer(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "the-same-secret-that-is-at-least-32-chars!"
	cfg.JWT.RefreshSecret = "the-same-secret-that-is-at-least-32-chars!"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected 'must differ' error, got: %v", err)
	}
}

func TestValidate_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_PipelineBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.EvalHistoryCap = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "PIPELINE_EVAL_HISTORY_CAP") {
		t.Fatalf("expected PIPELINE_EVAL_HISTORY_CAP error, got: %v", err)
	}
}

func TestValidate_GatewayTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.Timeout = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GATEWAY_TIMEOUT") {
		t.Fatalf("expected GATEWAY_TIMEOUT error, got: %v", err)
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "DB_PASSWORD") || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected both errors collected, got: %v", err)
	}
}
