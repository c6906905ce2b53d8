package agent

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/synapse-labs/synapse/internal/memory"
)

// FallbackTurnSource layers the short-term cache over the durable message
// log. The cache expires and loses everything on restart; the log does not,
// so a miss or error on the primary reads through to the fallback.
type FallbackTurnSource struct {
	primary  TurnSource
	fallback TurnSource
}

// NewFallbackTurnSource creates a read-through turn source. Either argument
// may be nil; the zero-source case yields an empty window.
func NewFallbackTurnSource(primary, fallback TurnSource) *FallbackTurnSource {
	return &FallbackTurnSource{primary: primary, fallback: fallback}
}

// RecentTurns returns the window from the primary when it has one, otherwise
// from the fallback. A primary error is logged, not propagated.
func (f *FallbackTurnSource) RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]memory.Turn, error) {
	if f.primary != nil {
		turns, err := f.primary.RecentTurns(ctx, conversationID, limit)
		if err == nil && len(turns) > 0 {
			return turns, nil
		}
		if err != nil {
			slog.Debug("turn cache unavailable, reading durable log", "error", err, "conversation_id", conversationID)
		}
	}
	if f.fallback == nil {
		return nil, nil
	}
	return f.fallback.RecentTurns(ctx, conversationID, limit)
}
