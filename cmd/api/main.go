package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/synapse-labs/synapse/internal/agent"
	"github.com/synapse-labs/synapse/internal/api"
	"github.com/synapse-labs/synapse/internal/auth"
	"github.com/synapse-labs/synapse/internal/config"
	"github.com/synapse-labs/synapse/internal/conversation"
	"github.com/synapse-labs/synapse/internal/database"
	"github.com/synapse-labs/synapse/internal/gateway"
	"github.com/synapse-labs/synapse/internal/insight"
	"github.com/synapse-labs/synapse/internal/memory"
	"github.com/synapse-labs/synapse/internal/middleware"
	inats "github.com/synapse-labs/synapse/internal/nats"
	"github.com/synapse-labs/synapse/internal/orchestrator"
	iredis "github.com/synapse-labs/synapse/internal/redis"
	"github.com/synapse-labs/synapse/internal/server"
	"github.com/synapse-labs/synapse/internal/trace"
	"github.com/synapse-labs/synapse/internal/users"
	"github.com/synapse-labs/synapse/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional). Without it trace events are logged and dropped.
	var natsClient *inats.Client
	var recorder trace.Recorder = trace.NopRecorder{}
	traceRepo := trace.NewRepository(pool)
	if cfg.NATS.Enabled {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		recorder = trace.NewNatsRecorder(inats.NewPublisher(natsClient.JetStream()))

		consumer := trace.NewConsumer(traceRepo, inats.NewConsumerManager(natsClient.JetStream()))
		consumerCtx, cancelConsumer := context.WithCancel(ctx)
		defer cancelConsumer()
		go func() {
			if err := consumer.Start(consumerCtx); err != nil {
				slog.Error("trace consumer stopped", "error", err)
			}
		}()
	}

	// Model gateway (optional). Without an API key every pipeline stage
	// runs on its deterministic fallback.
	var completer gateway.Completer
	if cfg.Gateway.APIKey != "" {
		gw, err := gateway.NewGeminiGateway(ctx, cfg.Gateway)
		if err != nil {
			slog.Error("creating model gateway", "error", err)
			os.Exit(1)
		}
		completer = gw
	} else {
		slog.Warn("no gateway api key configured, pipeline will use fallbacks only")
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Memory
	memRepo := memory.NewPostgresRepository(pool)
	shortTerm := memory.NewShortTermStore(redisClient)
	memSvc := memory.NewService(memRepo, shortTerm, cfg.Pipeline)
	memHandler := memory.NewHandler(memSvc)

	// Conversations
	convRepo := conversation.NewPostgresRepository(pool)
	convSvc := conversation.NewService(convRepo)
	convHandler := conversation.NewHandler(convSvc)

	// Pipeline agents. The conversation window reads through to the durable
	// message log when the Redis cache is cold.
	turnSource := agent.NewFallbackTurnSource(shortTerm, convSvc)
	assembler := agent.NewContextAssembler(memSvc, turnSource, completer, cfg.Pipeline.RecentTurns)
	planner := agent.NewStrategyPlanner(completer)
	generator := agent.NewResponseGenerator(completer)
	evaluator := agent.NewInteractionEvaluator(completer)

	// Background evaluation queue
	queue := worker.NewQueue(cfg.Pipeline.QueueSize, cfg.Pipeline.Workers)

	orch := orchestrator.New(assembler, planner, generator, evaluator, convSvc, memSvc, queue, recorder, cfg.Pipeline)
	chatHandler := orchestrator.NewHandler(orch, memSvc)

	insightHandler := insight.NewHandler(memSvc)
	traceHandler := trace.NewHandler(traceRepo)

	authLimiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.AuthMaxReqs, cfg.RateLimit.AuthWindowSec)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Chat: chatHandler.Chat,

		ListConversations:   convHandler.List,
		CreateConversation:  convHandler.Create,
		ConversationHistory: convHandler.History,
		DeleteConversation:  convHandler.Delete,

		GetMemory:           memHandler.Get,
		UpdateProfile:       memHandler.UpdateProfile,
		OnboardingStatus:    memHandler.OnboardingStatus,
		OnboardingQuestions: memHandler.OnboardingQuestions,
		CompleteOnboarding:  memHandler.CompleteOnboarding,

		GetInsights: insightHandler.Get,
		ListTraces:  traceHandler.Recent,

		AuthMiddleware: auth.Middleware(authSvc),
		QueueHealthy:   queue.Healthy,
	})

	// Start server. The queue drains before connections close so pending
	// evaluations get committed.
	srv := server.New(cfg.Server, router)
	err = srv.Start(func(shutdownCtx context.Context) {
		if err := queue.Shutdown(shutdownCtx); err != nil {
			slog.Warn("evaluation queue did not drain before deadline", "error", err)
		}
	})
	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
