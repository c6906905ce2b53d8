package trace

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/synapse-labs/synapse/internal/api"
)

// Handler serves the trace viewer endpoint.
type Handler struct {
	repo *Repository
}

// NewHandler creates a trace handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Recent returns the newest trace entries, newest first.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	entries, err := h.repo.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("listing traces", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, entries)
}
