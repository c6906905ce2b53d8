package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/synapse-labs/synapse/internal/gateway"
	"github.com/synapse-labs/synapse/internal/memory"
	"github.com/synapse-labs/synapse/internal/metrics"
)

// FailsafeTag marks evaluations whose fields were overridden by the
// deterministic confusion rules. It is machine-readable for audit queries.
const FailsafeTag = "[FAILSAFE]"

// confusionMarkers are the fixed phrases that count as explicit user-stated
// confusion. Matching is substring over the lowercased message; broader NLP
// detection is out of bounds for the fail-safe, which must stay
// deterministic.
var confusionMarkers = []string{
	"don't understand",
	"dont understand",
	"do not understand",
	"i'm confused",
	"im confused",
	"i am confused",
	"doesn't make sense",
	"doesnt make sense",
	"does not make sense",
	"makes no sense",
	"lost",
	"what do you mean",
	"no idea what",
}

// struggleIndicators flag messages worth recording as struggle topics. A
// looser list than the confusion markers: these feed the struggle history,
// not the fail-safe.
var struggleIndicators = []string{
	"stuck", "confused", "don't understand", "hard", "difficult",
	"struggling", "lost", "overwhelmed", "can't", "help",
	"frustrated", "not sure", "unclear", "complicated",
}

// InteractionEvaluator scores each turn for genuine-understanding signals.
// Its output is internal state, never user-facing text.
type InteractionEvaluator struct {
	completer gateway.Completer
}

// NewInteractionEvaluator creates an evaluator.
func NewInteractionEvaluator(completer gateway.Completer) *InteractionEvaluator {
	return &InteractionEvaluator{completer: completer}
}

// evalWire is the shape requested from the gateway. Pointer fields
// distinguish "absent" from zero so a partial object falls back to defaults
// instead of silently scoring 0.
type evalWire struct {
	ClarityScore     *int    `json:"clarity_score"`
	Trend            string  `json:"confusion_trend"`
	Delta            *int    `json:"understanding_delta"`
	StruggleDetected *string `json:"struggle_detected"`
	Reasoning        string  `json:"reasoning"`
}

// Evaluate scores one message/response pair via the gateway. On failure or
// malformed output it returns the default evaluation: previous clarity
// unchanged, zero delta, stable trend. The default is deliberately inert so
// a broken gateway can never manufacture progress.
func (e *InteractionEvaluator) Evaluate(ctx context.Context, message, response string, uc *UserContext) memory.EvaluationResult {
	prevClarity := uc.PreviousClarity()

	if e.completer == nil {
		metrics.EvaluationsTotal.WithLabelValues("default").Inc()
		return defaultEvaluation(prevClarity)
	}

	out, err := e.completer.Complete(ctx, gateway.CompletionRequest{
		Prompt:     e.buildPrompt(message, response, uc, prevClarity),
		Structured: true,
	})
	if err != nil {
		metrics.GatewayCallsTotal.WithLabelValues("evaluator", "fallback").Inc()
		metrics.EvaluationsTotal.WithLabelValues("default").Inc()
		slog.Warn("evaluator gateway call failed, using default evaluation", "error", err, "user_id", uc.UserID)
		return defaultEvaluation(prevClarity)
	}

	var wire evalWire
	if err := gateway.DecodeJSON(out, &wire); err != nil || wire.ClarityScore == nil {
		metrics.GatewayCallsTotal.WithLabelValues("evaluator", "fallback").Inc()
		metrics.EvaluationsTotal.WithLabelValues("default").Inc()
		slog.Warn("evaluator returned unusable output, using default evaluation", "error", err, "user_id", uc.UserID)
		return defaultEvaluation(prevClarity)
	}

	metrics.GatewayCallsTotal.WithLabelValues("evaluator", "ok").Inc()
	metrics.EvaluationsTotal.WithLabelValues("scored").Inc()
	return sanitize(wire)
}

func defaultEvaluation(prevClarity int) memory.EvaluationResult {
	return memory.EvaluationResult{
		ClarityScore:     prevClarity,
		Delta:            0,
		Trend:            memory.TrendStable,
		StruggleDetected: memory.StruggleNone,
		Reasoning:        "evaluation unavailable",
		EvaluatedAt:      time.Now().UTC(),
	}
}

// sanitize validates the wire shape into a committed-record candidate:
// clarity clamped to [0,100], delta to [-10,10], unknown trends become
// stable.
func sanitize(wire evalWire) memory.EvaluationResult {
	r := memory.EvaluationResult{
		ClarityScore:     clamp(*wire.ClarityScore, 0, 100),
		Trend:            wire.Trend,
		StruggleDetected: memory.StruggleNone,
		Reasoning:        strings.TrimSpace(wire.Reasoning),
		EvaluatedAt:      time.Now().UTC(),
	}

	if wire.Delta != nil {
		r.Delta = clamp(*wire.Delta, -10, 10)
	}

	switch r.Trend {
	case memory.TrendImproving, memory.TrendStable, memory.TrendWorsening:
	default:
		r.Trend = memory.TrendStable
	}

	if wire.StruggleDetected != nil && strings.TrimSpace(*wire.StruggleDetected) != "" {
		r.StruggleDetected = strings.TrimSpace(*wire.StruggleDetected)
	}
	return r
}

// ApplyFailsafe enforces the truthfulness invariant: when the user's own
// message states confusion, the committed evaluation may not report
// progress, whatever the model said. Pure function, no I/O.
func ApplyFailsafe(result memory.EvaluationResult, message string, previousClarity int) memory.EvaluationResult {
	if !ContainsConfusionMarker(message) {
		return result
	}

	if result.ClarityScore > previousClarity {
		result.ClarityScore = previousClarity
	}
	if result.Delta > 0 {
		result.Delta = 0
	}
	if result.Trend == memory.TrendImproving {
		result.Trend = memory.TrendStable
	}
	if result.StruggleDetected == memory.StruggleNone || result.StruggleDetected == "" {
		result.StruggleDetected = "explicit confusion"
	}

	result.FailsafeApplied = true
	if !strings.Contains(result.Reasoning, FailsafeTag) {
		result.Reasoning = strings.TrimSpace(result.Reasoning + " " + FailsafeTag)
	}
	return result
}

// ContainsConfusionMarker reports whether the message contains any explicit
// confusion phrase.
func ContainsConfusionMarker(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range confusionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// DetectStruggleIndicator reports whether the message reads like the user is
// stuck, for struggle-history bookkeeping.
func DetectStruggleIndicator(message string) bool {
	lower := strings.ToLower(message)
	for _, indicator := range struggleIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *InteractionEvaluator) buildPrompt(message, response string, uc *UserContext, prevClarity int) string {
	var b strings.Builder

	b.WriteString("Analyze this mentor-student interaction for learning quality.\n\n")
	fmt.Fprintf(&b, "STUDENT MESSAGE: %q\n", message)
	fmt.Fprintf(&b, "MENTOR RESPONSE: %q\n\n", truncate(response, 500))
	fmt.Fprintf(&b, "STUDENT NOTES:\n%s\n", uc.Summary)
	fmt.Fprintf(&b, "Previous clarity score: %d\n", prevClarity)
	if last := uc.LatestEvaluation(); last != nil {
		fmt.Fprintf(&b, "Previous trend: %s\n", last.Trend)
	}

	b.WriteString(`
Judge UNDERSTANDING, not activity or politeness. Be strict; do not inflate.

Respond with ONLY a JSON object:
{
  "clarity_score": 0-100,
  "confusion_trend": "improving" | "stable" | "worsening",
  "understanding_delta": -10 to 10,
  "struggle_detected": null or "short topic that needs attention",
  "reasoning": "one sentence"
}`)

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
