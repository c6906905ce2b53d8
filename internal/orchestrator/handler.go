package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/synapse-labs/synapse/internal/api"
	"github.com/synapse-labs/synapse/internal/auth"
	"github.com/synapse-labs/synapse/internal/conversation"
	"github.com/synapse-labs/synapse/internal/memory"
	"github.com/synapse-labs/synapse/internal/middleware"
)

// ChatRequest is the inbound chat message.
type ChatRequest struct {
	Message        string     `json:"message" validate:"required,min=1,max=4000"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// Handler exposes the chat endpoint.
type Handler struct {
	orch     *Orchestrator
	mem      *memory.Service
	validate *validator.Validate
}

// NewHandler creates a chat handler.
func NewHandler(orch *Orchestrator, mem *memory.Service) *Handler {
	return &Handler{
		orch:     orch,
		mem:      mem,
		validate: validator.New(),
	}
}

// Chat accepts a user message and returns the mentor reply.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	mem, err := h.mem.Ensure(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("chat: memory unavailable", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrMemoryUnavailable)
		return
	}
	if !mem.Onboarding.Completed {
		api.HandleError(w, &api.AppError{
			Code:    http.StatusForbidden,
			Message: "complete onboarding before starting a conversation",
		})
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	result, err := h.orch.Handle(r.Context(), claims.UserID, req.ConversationID, req.Message, requestID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			api.HandleError(w, api.ErrNotFound)
			return
		}
		slog.Error("chat: pipeline failed", "error", err, "user_id", claims.UserID)
		if errors.Is(err, memory.ErrUnavailable) {
			api.HandleError(w, api.ErrMemoryUnavailable)
			return
		}
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, result)
}
