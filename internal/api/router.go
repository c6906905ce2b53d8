package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synapse-labs/synapse/internal/database"
	mw "github.com/synapse-labs/synapse/internal/middleware"
	inats "github.com/synapse-labs/synapse/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Chat pipeline
	Chat http.HandlerFunc

	// Conversation handlers
	ListConversations   http.HandlerFunc
	CreateConversation  http.HandlerFunc
	ConversationHistory http.HandlerFunc
	DeleteConversation  http.HandlerFunc

	// Memory handlers
	GetMemory           http.HandlerFunc
	UpdateProfile       http.HandlerFunc
	OnboardingStatus    http.HandlerFunc
	OnboardingQuestions http.HandlerFunc
	CompleteOnboarding  http.HandlerFunc

	// Insight handlers
	GetInsights http.HandlerFunc

	// Trace handlers
	ListTraces http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler

	// Evaluation queue health
	QueueHealthy func() bool
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB, NATS, evaluation queue
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
			"queue":    "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		if h.QueueHealthy != nil && !h.QueueHealthy() {
			health["queue"] = "stopped"
			health["status"] = "degraded"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public) — optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/chat", h.Chat)

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", h.ListConversations)
				r.Post("/", h.CreateConversation)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/messages", h.ConversationHistory)
					r.Delete("/", h.DeleteConversation)
				})
			})

			r.Route("/memory", func(r chi.Router) {
				r.Get("/", h.GetMemory)
				r.Put("/profile", h.UpdateProfile)
			})

			r.Route("/onboarding", func(r chi.Router) {
				r.Get("/status", h.OnboardingStatus)
				r.Get("/questions", h.OnboardingQuestions)
				r.Post("/complete", h.CompleteOnboarding)
			})

			r.Get("/insights", h.GetInsights)
			r.Get("/traces", h.ListTraces)
		})
	})

	return r
}
