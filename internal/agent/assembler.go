package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/synapse-labs/synapse/internal/gateway"
	"github.com/synapse-labs/synapse/internal/memory"
	"github.com/synapse-labs/synapse/internal/metrics"
)

// MemorySource provides the durable user record for context assembly.
type MemorySource interface {
	Ensure(ctx context.Context, userID uuid.UUID) (*memory.UserMemory, error)
}

// TurnSource provides the recent conversation window.
type TurnSource interface {
	RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]memory.Turn, error)
}

// ContextAssembler builds the per-request UserContext snapshot. It is
// read-only: assembly never mutates stored state.
type ContextAssembler struct {
	mem         MemorySource
	turns       TurnSource
	completer   gateway.Completer
	recentTurns int
}

// NewContextAssembler creates an assembler. completer may be nil, in which
// case the context summary is always the raw field concatenation.
func NewContextAssembler(mem MemorySource, turns TurnSource, completer gateway.Completer, recentTurns int) *ContextAssembler {
	return &ContextAssembler{
		mem:         mem,
		turns:       turns,
		completer:   completer,
		recentTurns: recentTurns,
	}
}

// Assemble builds a UserContext for one request. A memory store failure is
// propagated untouched; retrying is the caller's decision. A turn cache
// failure only costs the conversation window.
func (a *ContextAssembler) Assemble(ctx context.Context, userID, conversationID uuid.UUID) (*UserContext, error) {
	mem, err := a.mem.Ensure(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("assembling context: %w", err)
	}

	uc := &UserContext{
		UserID:            userID,
		Profile:           mem.Profile,
		Struggles:         mem.Struggles,
		Traits:            mem.Traits,
		Effort:            mem.Effort,
		EvaluationHistory: mem.EvaluationHistory,
		MentoringStyle:    mem.Onboarding.MentoringStyle,
	}

	if a.turns != nil {
		turns, err := a.turns.RecentTurns(ctx, conversationID, a.recentTurns)
		if err != nil {
			slog.Warn("context assembly: recent turns unavailable", "error", err, "conversation_id", conversationID)
		} else {
			uc.RecentTurns = turns
		}
	}

	uc.Summary = a.summarize(ctx, uc)
	return uc, nil
}

// summarize produces a compact context description for downstream prompts.
// When the gateway is unavailable the raw concatenation is used instead;
// summary quality is never worth failing the request over.
func (a *ContextAssembler) summarize(ctx context.Context, uc *UserContext) string {
	raw := rawSummary(uc)
	if a.completer == nil {
		return raw
	}

	prompt := fmt.Sprintf(
		"Condense this student profile into at most 3 short lines for a mentor's working notes. Facts only, no praise.\n\n%s",
		raw)

	out, err := a.completer.Complete(ctx, gateway.CompletionRequest{Prompt: prompt})
	if err != nil || strings.TrimSpace(out) == "" {
		metrics.GatewayCallsTotal.WithLabelValues("assembler", "fallback").Inc()
		slog.Debug("context summary fell back to raw fields", "error", err)
		return raw
	}
	metrics.GatewayCallsTotal.WithLabelValues("assembler", "ok").Inc()
	return strings.TrimSpace(out)
}

func rawSummary(uc *UserContext) string {
	var b strings.Builder

	if uc.Profile.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", uc.Profile.Name)
	}
	if len(uc.Profile.Goals) > 0 {
		fmt.Fprintf(&b, "Goals: %s\n", strings.Join(uc.Profile.Goals, "; "))
	}
	if len(uc.Profile.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(uc.Profile.Interests, ", "))
	}
	if uc.Profile.Stage != "" {
		fmt.Fprintf(&b, "Stage: %s\n", uc.Profile.Stage)
	}
	if uc.Profile.LearningPace != "" {
		fmt.Fprintf(&b, "Learning pace: %s\n", uc.Profile.LearningPace)
	}
	if uc.MentoringStyle != "" {
		fmt.Fprintf(&b, "Preferred mentoring style: %s\n", uc.MentoringStyle)
	}

	if len(uc.Struggles) > 0 {
		topics := make([]string, 0, len(uc.Struggles))
		for _, s := range uc.Struggles {
			topics = append(topics, fmt.Sprintf("%s (%s)", s.Topic, s.Severity))
		}
		fmt.Fprintf(&b, "Struggles: %s\n", strings.Join(topics, ", "))
	}

	if last := uc.LatestEvaluation(); last != nil {
		fmt.Fprintf(&b, "Latest clarity: %d (%s)\n", last.ClarityScore, last.Trend)
	}

	fmt.Fprintf(&b, "Sessions: %d, streak: %d days\n",
		uc.Effort.TotalSessions, uc.Effort.CurrentStreakDays)

	return strings.TrimSpace(b.String())
}
