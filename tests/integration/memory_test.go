//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-labs/synapse/internal/memory"
)

func TestMemoryLifecycle(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "memory@example.com", "password123")
	token := LoginUser(t, env, "memory@example.com", "password123")

	t.Run("record created on first read", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/memory", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		mem := ParseResponse(t, resp)["data"].(map[string]any)
		onboarding := mem["onboarding"].(map[string]any)
		assert.Equal(t, false, onboarding["completed"])
	})

	t.Run("onboarding status before completion", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/onboarding/status", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := ParseResponse(t, resp)["data"].(map[string]any)
		assert.Equal(t, false, data["is_complete"])
	})

	t.Run("onboarding questions", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/onboarding/questions", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := ParseResponse(t, resp)["data"].(map[string]any)
		questions := data["questions"].([]any)
		assert.Len(t, questions, 4)
	})

	t.Run("complete onboarding seeds profile", func(t *testing.T) {
		body := map[string]string{
			"name":             "Ada",
			"why_here":         "master concurrency",
			"guidance_type":    "skills",
			"experience_level": "beginner",
			"mentoring_style":  "direct",
		}
		resp := DoRequest(t, env, "POST", "/api/v1/onboarding/complete", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		mem := ParseResponse(t, resp)["data"].(map[string]any)
		profile := mem["profile"].(map[string]any)
		assert.Equal(t, "Ada", profile["name"])
		assert.Equal(t, "slow", profile["learning_pace"])
		onboarding := mem["onboarding"].(map[string]any)
		assert.Equal(t, true, onboarding["completed"])
	})

	t.Run("profile update merges fields", func(t *testing.T) {
		body := map[string]any{"interests": []string{"distributed systems"}, "learning_pace": "normal"}
		resp := DoRequest(t, env, "PUT", "/api/v1/memory/profile", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		mem := ParseResponse(t, resp)["data"].(map[string]any)
		profile := mem["profile"].(map[string]any)
		assert.Equal(t, "normal", profile["learning_pace"])
		// Fields not in the request stay untouched.
		assert.Equal(t, "Ada", profile["name"])
	})

	t.Run("invalid learning pace rejected", func(t *testing.T) {
		body := map[string]string{"learning_pace": "frantic"}
		resp := DoRequest(t, env, "PUT", "/api/v1/memory/profile", body, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMemoryAppendsStayBounded(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "bounded@example.com", "password123")
	token := LoginUser(t, env, "bounded@example.com", "password123")

	// First read creates the record; its user_id keys the direct appends.
	resp := DoRequest(t, env, "GET", "/api/v1/memory", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mem := ParseResponse(t, resp)["data"].(map[string]any)
	userID, err := uuid.Parse(mem["user_id"].(string))
	require.NoError(t, err)

	ctx := context.Background()
	repo := memory.NewPostgresRepository(env.Pool)

	t.Run("evaluation history evicts oldest first", func(t *testing.T) {
		for i := 0; i < 25; i++ {
			err := repo.AppendEvaluation(ctx, userID,
				memory.EvaluationResult{ClarityScore: i, Trend: memory.TrendStable}, 20)
			require.NoError(t, err)
		}

		m, err := repo.GetByUserID(ctx, userID)
		require.NoError(t, err)
		require.Len(t, m.EvaluationHistory, 20)
		assert.Equal(t, 5, m.EvaluationHistory[0].ClarityScore)
		assert.Equal(t, 24, m.EvaluationHistory[19].ClarityScore)
	})

	t.Run("session dates evict oldest first", func(t *testing.T) {
		day := func(i int) string {
			return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02")
		}
		for i := 0; i < 105; i++ {
			require.NoError(t, repo.AppendSessionDate(ctx, userID, day(i), 100))
		}

		m, err := repo.GetByUserID(ctx, userID)
		require.NoError(t, err)
		require.Len(t, m.SessionDates, 100)
		assert.Equal(t, day(5), m.SessionDates[0])
		assert.Equal(t, day(104), m.SessionDates[99])
	})

	t.Run("append to missing record fails", func(t *testing.T) {
		err := repo.AppendSessionDate(ctx, uuid.New(), "2026-01-01", 100)
		require.Error(t, err)
		assert.ErrorIs(t, err, memory.ErrUnavailable)
	})
}

func TestInsights(t *testing.T) {
	env := SetupTestEnv(t)

	token := OnboardUser(t, env, "insights@example.com", "password123")

	resp := DoRequest(t, env, "GET", "/api/v1/insights", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := ParseResponse(t, resp)["data"].(map[string]any)
	// No evaluations yet, so momentum starts at the baseline state.
	momentum := data["momentum"].(map[string]any)
	assert.Equal(t, "starting", momentum["state"])
	assert.NotEmpty(t, data["nurture_prompt"])
	effort := data["effort"].(map[string]any)
	assert.NotEmpty(t, effort["note"])
}
