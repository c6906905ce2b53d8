package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/synapse-labs/synapse/internal/gateway"
	"github.com/synapse-labs/synapse/internal/memory"
	"github.com/synapse-labs/synapse/internal/metrics"
)

// StrategyPlanner picks a response strategy for one turn. Its output is
// structured data only; user-facing prose here is a contract violation.
type StrategyPlanner struct {
	completer gateway.Completer
}

// NewStrategyPlanner creates a planner.
func NewStrategyPlanner(completer gateway.Completer) *StrategyPlanner {
	return &StrategyPlanner{completer: completer}
}

// Plan derives bias hints from the latest committed evaluation, asks the
// gateway for a strategy and validates the result. Any gateway failure or
// unusable output yields the default strategy; planning never fails the
// request.
func (p *StrategyPlanner) Plan(ctx context.Context, uc *UserContext, message string) Strategy {
	if p.completer == nil {
		return DefaultStrategy()
	}

	prompt := p.buildPrompt(uc, message)

	out, err := p.completer.Complete(ctx, gateway.CompletionRequest{Prompt: prompt, Structured: true})
	if err != nil {
		metrics.GatewayCallsTotal.WithLabelValues("planner", "fallback").Inc()
		slog.Warn("planner gateway call failed, using default strategy", "error", err, "user_id", uc.UserID)
		return DefaultStrategy()
	}

	var s Strategy
	if err := gateway.DecodeJSON(out, &s); err != nil {
		metrics.GatewayCallsTotal.WithLabelValues("planner", "fallback").Inc()
		slog.Warn("planner returned unparseable strategy, using default", "error", err, "user_id", uc.UserID)
		return DefaultStrategy()
	}

	metrics.GatewayCallsTotal.WithLabelValues("planner", "ok").Inc()
	return s.Normalize()
}

// biasHints turns the latest evaluation into planning instructions. The
// hints go into the prompt; they are suggestions to the model, not post-hoc
// overrides.
func biasHints(uc *UserContext) []string {
	last := uc.LatestEvaluation()
	if last == nil {
		return nil
	}

	var hints []string
	if last.ClarityScore < 40 {
		hints = append(hints, "Clarity is low: prefer pacing=slow and strategy_label=support.")
	} else if last.ClarityScore >= 70 {
		hints = append(hints, "Clarity is high: prefer strategy_label=challenge to stretch the student.")
	}
	if last.Trend == memory.TrendWorsening {
		hints = append(hints, "Confusion is worsening: tone MUST be supportive, whatever else you pick.")
	}
	return hints
}

func (p *StrategyPlanner) buildPrompt(uc *UserContext, message string) string {
	var b strings.Builder

	b.WriteString("You are the planning step of a mentoring pipeline. Pick a response strategy for this turn.\n\n")
	fmt.Fprintf(&b, "STUDENT NOTES:\n%s\n\n", uc.Summary)
	fmt.Fprintf(&b, "NEW MESSAGE: %q\n\n", message)

	if hints := biasHints(uc); len(hints) > 0 {
		b.WriteString("PLANNING CONSTRAINTS:\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with ONLY a JSON object:
{
  "strategy_label": "support" | "challenge" | "explore" | "reinforce",
  "tone": "short free-text tone, e.g. warm, direct, encouraging",
  "verbosity": "brief" | "normal" | "detailed",
  "pacing": "slow" | "normal" | "fast",
  "should_ask_question": true | false
}
No prose, no explanations, no markdown.`)

	return b.String()
}
