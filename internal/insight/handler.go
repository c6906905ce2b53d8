package insight

import (
	"log/slog"
	"net/http"

	"github.com/synapse-labs/synapse/internal/api"
	"github.com/synapse-labs/synapse/internal/auth"
	"github.com/synapse-labs/synapse/internal/memory"
)

// Handler serves the insight endpoint.
type Handler struct {
	mem *memory.Service
}

// NewHandler creates an insight handler.
func NewHandler(mem *memory.Service) *Handler {
	return &Handler{mem: mem}
}

// Get returns the caller's derived insight summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	mem, err := h.mem.Ensure(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("deriving insights", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrMemoryUnavailable)
		return
	}

	api.JSON(w, http.StatusOK, Derive(mem))
}
