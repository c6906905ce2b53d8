package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Gateway   GatewayConfig
	JWT       JWTConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

// GatewayConfig configures the language model gateway.
// Every model call in the pipeline is bounded by Timeout; on expiry the
// calling stage falls back to its deterministic default.
type GatewayConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// PipelineConfig holds the pipeline's bounded-history and background-work knobs.
type PipelineConfig struct {
	RecentTurns      int // conversation turns included in UserContext
	EvalHistoryCap   int // evaluation_history bounded push cap
	SessionDatesCap  int // session_dates bounded push cap
	QueueSize        int // background task queue capacity
	Workers          int // background workers draining the queue
	ShortTermTTLSec  int // redis recent-turns cache TTL
	TraitRecalcEvery int // recompute learner traits every N evaluations
}

type RateLimitConfig struct {
	AuthMaxReqs   int
	AuthWindowSec int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		Gateway: GatewayConfig{
			APIKey: k.String("gateway.api.key"),
			Model:  k.String("gateway.model"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		Pipeline: PipelineConfig{
			RecentTurns:      k.Int("pipeline.recent.turns"),
			EvalHistoryCap:   k.Int("pipeline.eval.history.cap"),
			SessionDatesCap:  k.Int("pipeline.session.dates.cap"),
			QueueSize:        k.Int("pipeline.queue.size"),
			Workers:          k.Int("pipeline.workers"),
			ShortTermTTLSec:  k.Int("pipeline.shortterm.ttl.sec"),
			TraitRecalcEvery: k.Int("pipeline.trait.recalc.every"),
		},
		RateLimit: RateLimitConfig{
			AuthMaxReqs:   k.Int("ratelimit.auth.max.reqs"),
			AuthWindowSec: k.Int("ratelimit.auth.window.sec"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(k.String("cors.allowed.origins")),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "synapse"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "synapse"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Gateway.Model == "" {
		cfg.Gateway.Model = "gemini-2.5-flash"
	}
	if cfg.Pipeline.RecentTurns == 0 {
		cfg.Pipeline.RecentTurns = 5
	}
	if cfg.Pipeline.EvalHistoryCap == 0 {
		cfg.Pipeline.EvalHistoryCap = 20
	}
	if cfg.Pipeline.SessionDatesCap == 0 {
		cfg.Pipeline.SessionDatesCap = 100
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 256
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Pipeline.ShortTermTTLSec == 0 {
		cfg.Pipeline.ShortTermTTLSec = 86400
	}
	if cfg.Pipeline.TraitRecalcEvery == 0 {
		cfg.Pipeline.TraitRecalcEvery = 5
	}
	if cfg.RateLimit.AuthMaxReqs == 0 {
		cfg.RateLimit.AuthMaxReqs = 10
	}
	if cfg.RateLimit.AuthWindowSec == 0 {
		cfg.RateLimit.AuthWindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	gwTimeoutStr := k.String("gateway.timeout")
	if gwTimeoutStr == "" {
		gwTimeoutStr = "25s"
	}
	cfg.Gateway.Timeout, err = time.ParseDuration(gwTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing gateway timeout: %w", err)
	}

	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	refreshExpStr := k.String("jwt.refresh.expiry")
	if refreshExpStr == "" {
		refreshExpStr = "168h"
	}
	cfg.JWT.RefreshExpiry, err = time.ParseDuration(refreshExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
