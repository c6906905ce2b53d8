//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequiresOnboarding(t *testing.T) {
	env := SetupTestEnv(t)

	RegisterUser(t, env, "gated@example.com", "password123")
	token := LoginUser(t, env, "gated@example.com", "password123")

	body := map[string]string{"message": "hello"}
	resp := DoRequest(t, env, "POST", "/api/v1/chat", body, token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestChatPipeline(t *testing.T) {
	env := SetupTestEnv(t)

	token := OnboardUser(t, env, "chat@example.com", "password123")

	t.Run("reply and conversation id", func(t *testing.T) {
		body := map[string]string{"message": "How do goroutines work?"}
		resp := DoRequest(t, env, "POST", "/api/v1/chat", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		data := result["data"].(map[string]any)
		assert.NotEmpty(t, data["reply"])
		assert.NotEmpty(t, data["conversation_id"])
	})

	t.Run("turns are persisted", func(t *testing.T) {
		body := map[string]string{"message": "And what about channels?"}
		resp := DoRequest(t, env, "POST", "/api/v1/chat", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := ParseResponse(t, resp)["data"].(map[string]any)
		convID := data["conversation_id"].(string)

		histResp := DoRequest(t, env, "GET", "/api/v1/chats/"+convID+"/messages", nil, token)
		require.Equal(t, http.StatusOK, histResp.StatusCode)
		hist := ParseResponse(t, histResp)
		msgs := hist["data"].([]any)
		assert.GreaterOrEqual(t, len(msgs), 2)
	})

	t.Run("evaluation committed after reply", func(t *testing.T) {
		body := map[string]string{"message": "I don't understand pointers at all"}
		resp := DoRequest(t, env, "POST", "/api/v1/chat", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Evaluation runs detached; poll the memory record for it.
		require.Eventually(t, func() bool {
			memResp := DoRequest(t, env, "GET", "/api/v1/memory", nil, token)
			if memResp.StatusCode != http.StatusOK {
				return false
			}
			mem := ParseResponse(t, memResp)["data"].(map[string]any)
			history, ok := mem["evaluation_history"].([]any)
			return ok && len(history) > 0
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("unknown conversation id is a 404", func(t *testing.T) {
		body := map[string]string{"message": "hello", "conversation_id": uuid.NewString()}
		resp := DoRequest(t, env, "POST", "/api/v1/chat", body, token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("empty message rejected", func(t *testing.T) {
		body := map[string]string{"message": ""}
		resp := DoRequest(t, env, "POST", "/api/v1/chat", body, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unauthenticated chat rejected", func(t *testing.T) {
		body := map[string]string{"message": "hello"}
		resp := DoRequest(t, env, "POST", "/api/v1/chat", body, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestConversations(t *testing.T) {
	env := SetupTestEnv(t)

	token := OnboardUser(t, env, "convs@example.com", "password123")

	createResp := DoRequest(t, env, "POST", "/api/v1/chats", map[string]string{"title": "Slices deep dive"}, token)
	require.Equal(t, http.StatusCreated, createResp.StatusCode)
	created := ParseResponse(t, createResp)["data"].(map[string]any)
	convID := created["id"].(string)

	t.Run("list includes created conversation", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/chats", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		convs := ParseResponse(t, resp)["data"].([]any)
		assert.NotEmpty(t, convs)
	})

	t.Run("other users cannot see it", func(t *testing.T) {
		otherToken := OnboardUser(t, env, "convs-other@example.com", "password123")
		resp := DoRequest(t, env, "GET", "/api/v1/chats/"+convID+"/messages", nil, otherToken)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete removes it", func(t *testing.T) {
		resp := DoRequest(t, env, "DELETE", "/api/v1/chats/"+convID, nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		histResp := DoRequest(t, env, "GET", "/api/v1/chats/"+convID+"/messages", nil, token)
		assert.Equal(t, http.StatusNotFound, histResp.StatusCode)
	})
}
