package memory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/synapse-labs/synapse/internal/api"
	"github.com/synapse-labs/synapse/internal/auth"
)

// Handler handles user memory HTTP endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler creates a new memory handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// Get returns the caller's memory record.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	mem, err := h.svc.Ensure(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("getting user memory", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrMemoryUnavailable)
		return
	}

	api.JSON(w, http.StatusOK, mem)
}

// UpdateProfile merges profile fields supplied by the caller.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	mem, err := h.svc.UpdateProfile(r.Context(), claims.UserID, &req)
	if err != nil {
		slog.Error("updating profile", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrMemoryUnavailable)
		return
	}

	api.JSON(w, http.StatusOK, mem)
}

// OnboardingStatus reports whether intake is complete.
func (h *Handler) OnboardingStatus(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	mem, err := h.svc.Ensure(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("getting onboarding status", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrMemoryUnavailable)
		return
	}

	status := map[string]any{"is_complete": mem.Onboarding.Completed}
	if mem.Onboarding.Completed {
		status["onboarding"] = mem.Onboarding
	}
	api.JSON(w, http.StatusOK, status)
}

// OnboardingQuestions returns the static intake form structure.
func (h *Handler) OnboardingQuestions(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]any{"questions": onboardingQuestions})
}

// CompleteOnboarding finishes intake and seeds the user's profile.
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CompleteOnboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	mem, err := h.svc.CompleteOnboarding(r.Context(), claims.UserID, &req, time.Now())
	if err != nil {
		slog.Error("completing onboarding", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrMemoryUnavailable)
		return
	}

	api.JSON(w, http.StatusOK, mem)
}
