//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/synapse-labs/synapse/internal/agent"
	"github.com/synapse-labs/synapse/internal/api"
	"github.com/synapse-labs/synapse/internal/auth"
	"github.com/synapse-labs/synapse/internal/config"
	"github.com/synapse-labs/synapse/internal/conversation"
	"github.com/synapse-labs/synapse/internal/insight"
	"github.com/synapse-labs/synapse/internal/memory"
	"github.com/synapse-labs/synapse/internal/orchestrator"
	"github.com/synapse-labs/synapse/internal/trace"
	"github.com/synapse-labs/synapse/internal/users"
	"github.com/synapse-labs/synapse/internal/worker"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	AuthSvc     *auth.Service
	MemorySvc   *memory.Service
}

var testEnv *TestEnv

// SetupTestEnv boots postgres and redis containers and wires the full
// service graph against them. The model gateway is left unset, so every
// pipeline stage runs its deterministic fallback and tests stay reproducible.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "synapse_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/synapse_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	pipelineCfg := config.PipelineConfig{
		RecentTurns:      5,
		EvalHistoryCap:   20,
		SessionDatesCap:  100,
		QueueSize:        32,
		Workers:          2,
		ShortTermTTLSec:  3600,
		TraitRecalcEvery: 5,
	}

	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!", "test-refresh-secret-32-chars-lng!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	memoryRepo := memory.NewPostgresRepository(pool)
	shortTerm := memory.NewShortTermStore(redisClient)
	memorySvc := memory.NewService(memoryRepo, shortTerm, pipelineCfg)
	memoryHandler := memory.NewHandler(memorySvc)

	convRepo := conversation.NewPostgresRepository(pool)
	convSvc := conversation.NewService(convRepo)
	convHandler := conversation.NewHandler(convSvc)

	assembler := agent.NewContextAssembler(memorySvc, agent.NewFallbackTurnSource(shortTerm, convSvc), nil, pipelineCfg.RecentTurns)
	planner := agent.NewStrategyPlanner(nil)
	generator := agent.NewResponseGenerator(nil)
	evaluator := agent.NewInteractionEvaluator(nil)

	queue := worker.NewQueue(pipelineCfg.QueueSize, pipelineCfg.Workers)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		queue.Shutdown(shutdownCtx)
	})

	orch := orchestrator.New(assembler, planner, generator, evaluator, convSvc, memorySvc, queue, trace.NopRecorder{}, pipelineCfg)
	chatHandler := orchestrator.NewHandler(orch, memorySvc)

	insightHandler := insight.NewHandler(memorySvc)
	traceHandler := trace.NewHandler(trace.NewRepository(pool))

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Chat: chatHandler.Chat,

		ListConversations:   convHandler.List,
		CreateConversation:  convHandler.Create,
		ConversationHistory: convHandler.History,
		DeleteConversation:  convHandler.Delete,

		GetMemory:           memoryHandler.Get,
		UpdateProfile:       memoryHandler.UpdateProfile,
		OnboardingStatus:    memoryHandler.OnboardingStatus,
		OnboardingQuestions: memoryHandler.OnboardingQuestions,
		CompleteOnboarding:  memoryHandler.CompleteOnboarding,

		GetInsights: insightHandler.Get,
		ListTraces:  traceHandler.Recent,

		AuthMiddleware: auth.Middleware(authSvc),
		QueueHealthy:   queue.Healthy,
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		AuthSvc:     authSvc,
		MemorySvc:   memorySvc,
	}

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

// OnboardUser registers, completes onboarding, and returns an access token.
func OnboardUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	RegisterUser(t, env, email, password)
	token := LoginUser(t, env, email, password)
	body := map[string]string{
		"name":             "Test Learner",
		"why_here":         "learn Go",
		"guidance_type":    "skills",
		"experience_level": "beginner",
		"mentoring_style":  "supportive",
	}
	resp := DoRequest(t, env, "POST", "/api/v1/onboarding/complete", body, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("completing onboarding failed: status %d", resp.StatusCode)
	}
	return token
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
