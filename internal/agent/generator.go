package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/synapse-labs/synapse/internal/gateway"
	"github.com/synapse-labs/synapse/internal/metrics"
)

// FallbackReply is returned whenever the generator cannot produce a real
// reply. The user always gets something warm back, never an error.
const FallbackReply = "I'm with you. Tell me more about what's on your mind."

// ResponseGenerator produces the user-facing mentor reply under the
// constraints the planner chose.
type ResponseGenerator struct {
	completer gateway.Completer
}

// NewResponseGenerator creates a generator.
func NewResponseGenerator(completer gateway.Completer) *ResponseGenerator {
	return &ResponseGenerator{completer: completer}
}

// Generate calls the gateway with the strategy baked into the prompt and
// enforces the verbosity line cap on whatever comes back. On any gateway
// failure it returns the fixed fallback reply.
func (g *ResponseGenerator) Generate(ctx context.Context, uc *UserContext, message string, strategy Strategy) string {
	if g.completer == nil {
		return FallbackReply
	}

	prompt := g.buildPrompt(uc, message, strategy)

	out, err := g.completer.Complete(ctx, gateway.CompletionRequest{Prompt: prompt})
	if err != nil || strings.TrimSpace(out) == "" {
		metrics.GatewayCallsTotal.WithLabelValues("generator", "fallback").Inc()
		slog.Warn("generator gateway call failed, using fallback reply", "error", err, "user_id", uc.UserID)
		return FallbackReply
	}

	metrics.GatewayCallsTotal.WithLabelValues("generator", "ok").Inc()
	return enforceLineCap(strings.TrimSpace(out), strategy.MaxLines())
}

// enforceLineCap truncates the reply to at most maxLines non-empty lines.
// The cap is a hard contract with the strategy; model output that exceeds it
// is cut, not trusted.
func enforceLineCap(reply string, maxLines int) string {
	lines := strings.Split(reply, "\n")

	kept := make([]string, 0, maxLines)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == maxLines {
			break
		}
	}
	return strings.Join(kept, "\n")
}

func (g *ResponseGenerator) buildPrompt(uc *UserContext, message string, strategy Strategy) string {
	var b strings.Builder

	b.WriteString("You are a mentor replying to a student. Honest, specific, no empty praise.\n\n")
	fmt.Fprintf(&b, "STUDENT NOTES:\n%s\n\n", uc.Summary)

	if len(uc.RecentTurns) > 0 {
		b.WriteString("RECENT CONVERSATION:\n")
		for _, t := range uc.RecentTurns {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "STUDENT MESSAGE: %q\n\n", message)

	b.WriteString("HARD RULES:\n")
	fmt.Fprintf(&b, "- Tone: %s. Pacing: %s. Approach: %s.\n", strategy.Tone, strategy.Pacing, strategy.StrategyLabel)
	fmt.Fprintf(&b, "- At most %d lines. No filler phrasing.\n", strategy.MaxLines())
	if strategy.ShouldAskQuestion {
		b.WriteString("- End with exactly one question.\n")
	} else {
		b.WriteString("- Ask at most one question, only if it genuinely helps.\n")
	}
	b.WriteString("- Plain text only, no markdown headers or bullet lists.\n")

	return b.String()
}
