package conversation

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/synapse-labs/synapse/internal/api"
	"github.com/synapse-labs/synapse/internal/auth"
)

// Handler handles conversation HTTP endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler creates a new conversation handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// List returns the caller's conversations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	page, pageSize := pagination(r)
	convs, total, err := h.svc.List(r.Context(), claims.UserID, page, pageSize)
	if err != nil {
		slog.Error("listing conversations", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, convs, total, page, pageSize)
}

// Create opens a new conversation thread.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	conv, err := h.svc.Create(r.Context(), claims.UserID, req.Title)
	if err != nil {
		slog.Error("creating conversation", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, conv)
}

// History returns a page of a conversation's messages.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	page, pageSize := pagination(r)
	msgs, total, err := h.svc.History(r.Context(), claims.UserID, convID, page, pageSize)
	if err != nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSONPaginated(w, http.StatusOK, msgs, total, page, pageSize)
}

// Delete removes a conversation.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), claims.UserID, convID); err != nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSONMessage(w, http.StatusOK, "conversation deleted")
}

func pagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}
