// Package insight derives display-ready progress summaries from stored
// memory state. Everything here is a pure read: no function in this package
// mutates the memory store.
//
// The classification deliberately ignores raw session counts as a primary
// signal. Momentum is about clarity, and a user who shows up daily while
// understanding nothing must see that reflected honestly.
package insight

import (
	"fmt"

	"github.com/synapse-labs/synapse/internal/memory"
)

// Momentum states.
const (
	StateStarting     = "starting"
	StateBuilding     = "building"
	StateSteady       = "steady"
	StateAccelerating = "accelerating"
	StateStruggling   = "struggling"
)

// momentumWindow is how many recent evaluations feed the classification.
const momentumWindow = 5

// effortNote is shown next to every effort block.
const effortNote = "Effort reflects activity, not understanding."

// Momentum is the derived trajectory classification.
type Momentum struct {
	State       string                   `json:"state"`
	InsightText string                   `json:"insight_text"`
	AvgClarity  int                      `json:"avg_clarity"`
	Latest      *memory.EvaluationResult `json:"latest_evaluation,omitempty"`
}

// EffortSummary is the activity block of the insight payload.
type EffortSummary struct {
	TotalSessions     int    `json:"total_sessions"`
	TotalMessages     int    `json:"total_messages"`
	CurrentStreakDays int    `json:"current_streak_days"`
	LongestStreakDays int    `json:"longest_streak_days"`
	Note              string `json:"note"`
}

// Summary is the full insight payload for one user.
type Summary struct {
	Momentum      Momentum      `json:"momentum"`
	Effort        EffortSummary `json:"effort"`
	Signals       []string      `json:"signals,omitempty"`
	NurturePrompt string        `json:"nurture_prompt,omitempty"`
}

// DeriveMomentum classifies the user's trajectory from the recent evaluation
// window and the latest trend. Session counts are never an input to the
// state decision.
func DeriveMomentum(effort memory.EffortMetrics, history []memory.EvaluationResult) Momentum {
	if len(history) == 0 {
		return Momentum{
			State:       StateStarting,
			InsightText: "Just getting started. Momentum here comes from clarity, not streaks.",
		}
	}

	window := history
	if len(window) > momentumWindow {
		window = window[len(window)-momentumWindow:]
	}

	sum := 0
	for _, e := range window {
		sum += e.ClarityScore
	}
	avg := sum / len(window)

	latest := history[len(history)-1]
	trend := latest.Trend

	var state, text string
	switch {
	case avg >= 70 && trend == memory.TrendImproving:
		state = StateAccelerating
		text = fmt.Sprintf("Understanding is compounding: clarity around %d and still improving.", avg)
	case avg >= 50 && trend != memory.TrendWorsening:
		state = StateSteady
		text = fmt.Sprintf("Clarity is holding around %d. Steady, real progress.", avg)
	case avg >= 30 || trend == memory.TrendImproving:
		state = StateBuilding
		text = fmt.Sprintf("Clarity is around %d. Progress is slow right now, and it's worth saying so plainly.", avg)
	default:
		state = StateStruggling
		text = fmt.Sprintf("Recent turns show low clarity (around %d). Slowing down beats pushing through.", avg)
	}

	return Momentum{
		State:       state,
		InsightText: text,
		AvgClarity:  avg,
		Latest:      &latest,
	}
}

// Derive builds the full insight summary from a memory record.
func Derive(mem *memory.UserMemory) Summary {
	momentum := DeriveMomentum(mem.Effort, mem.EvaluationHistory)

	return Summary{
		Momentum: momentum,
		Effort: EffortSummary{
			TotalSessions:     mem.Effort.TotalSessions,
			TotalMessages:     mem.Effort.TotalMessages,
			CurrentStreakDays: mem.Effort.CurrentStreakDays,
			LongestStreakDays: mem.Effort.LongestStreakDays,
			Note:              effortNote,
		},
		Signals:       signals(mem),
		NurturePrompt: nurturePrompt(momentum, mem),
	}
}

// signals lists honest, factual observations worth surfacing.
func signals(mem *memory.UserMemory) []string {
	var out []string

	if latest := latestEval(mem); latest != nil {
		switch latest.Trend {
		case memory.TrendWorsening:
			out = append(out, "Confusion has been increasing over recent turns.")
		case memory.TrendImproving:
			out = append(out, "Clarity has been improving over recent turns.")
		}
		if latest.FailsafeApplied {
			out = append(out, "The last evaluation was corrected against stated confusion.")
		}
	}

	for _, s := range mem.Struggles {
		if s.Severity == memory.SeveritySignificant {
			out = append(out, fmt.Sprintf("Repeated difficulty with %s (%d times).", s.Topic, s.Count))
		}
	}

	if mem.Traits.Perseverance == memory.TraitHigh {
		out = append(out, "Keeps showing up through difficult stretches.")
	}
	return out
}

// nurturePrompt suggests a next step matched to the state. Encouraging where
// the data supports it, never congratulatory by default.
func nurturePrompt(m Momentum, mem *memory.UserMemory) string {
	switch m.State {
	case StateStarting:
		return "Share what you're working toward so your mentor can meet you there."
	case StateStruggling:
		if len(mem.Struggles) > 0 {
			return fmt.Sprintf("Consider revisiting %s from a smaller angle next session.", mem.Struggles[len(mem.Struggles)-1].Topic)
		}
		return "Pick one small piece that confused you and bring just that next session."
	case StateBuilding:
		return "Keep sessions short and focused on one idea until it clicks."
	case StateSteady:
		return "A good moment to explain a recent topic back in your own words."
	default:
		return "Try stretching into a harder variation of what you just learned."
	}
}

func latestEval(mem *memory.UserMemory) *memory.EvaluationResult {
	if len(mem.EvaluationHistory) == 0 {
		return nil
	}
	return &mem.EvaluationHistory[len(mem.EvaluationHistory)-1]
}
