// Package agent implements the multi-agent response pipeline: context
// assembly, strategy planning, response generation and interaction
// evaluation. Agents hold no mutable state; each call is a pure function of
// its inputs plus one gateway round trip, with a deterministic fallback for
// every way the gateway can fail.
package agent

import (
	"strings"

	"github.com/google/uuid"

	"github.com/synapse-labs/synapse/internal/memory"
)

// Verbosity levels and the reply line caps they map to. The cap is enforced
// by the generator after the model responds; model output never negotiates
// it upward.
const (
	VerbosityBrief    = "brief"
	VerbosityNormal   = "normal"
	VerbosityDetailed = "detailed"
)

// Strategy labels.
const (
	StrategySupport   = "support"
	StrategyChallenge = "challenge"
	StrategyExplore   = "explore"
	StrategyReinforce = "reinforce"
)

// Pacing values.
const (
	PacingSlow   = "slow"
	PacingNormal = "normal"
	PacingFast   = "fast"
)

// UserContext is the per-request snapshot the agents work from. It is
// assembled once by the context assembler, handed through the pipeline and
// discarded; it is never persisted as a unit.
type UserContext struct {
	UserID            uuid.UUID
	Profile           memory.Profile
	Struggles         []memory.Struggle
	Traits            memory.Traits
	Effort            memory.EffortMetrics
	EvaluationHistory []memory.EvaluationResult
	RecentTurns       []memory.Turn
	MentoringStyle    string
	Summary           string
}

// LatestEvaluation returns the newest committed evaluation, or nil when the
// user has no history yet.
func (c *UserContext) LatestEvaluation() *memory.EvaluationResult {
	if len(c.EvaluationHistory) == 0 {
		return nil
	}
	return &c.EvaluationHistory[len(c.EvaluationHistory)-1]
}

// PreviousClarity returns the newest committed clarity score, or a neutral
// baseline of 50 for users with no history.
func (c *UserContext) PreviousClarity() int {
	if last := c.LatestEvaluation(); last != nil {
		return last.ClarityScore
	}
	return 50
}

// Strategy is the planner's structured output: instructions for one turn,
// consumed once by the generator and then discarded. It carries no
// user-facing prose.
type Strategy struct {
	StrategyLabel     string `json:"strategy_label"`
	Tone              string `json:"tone"`
	Verbosity         string `json:"verbosity"`
	Pacing            string `json:"pacing"`
	ShouldAskQuestion bool   `json:"should_ask_question"`
}

// DefaultStrategy is used whenever the planner's gateway call fails or
// returns something unusable. The pipeline continues with it rather than
// aborting.
func DefaultStrategy() Strategy {
	return Strategy{
		StrategyLabel:     StrategySupport,
		Tone:              "warm",
		Verbosity:         VerbosityNormal,
		Pacing:            PacingNormal,
		ShouldAskQuestion: false,
	}
}

// MaxLines returns the hard reply line cap for the strategy's verbosity.
func (s Strategy) MaxLines() int {
	switch s.Verbosity {
	case VerbosityBrief:
		return 4
	case VerbosityDetailed:
		return 8
	default:
		return 6
	}
}

// Normalize validates the strategy's enum fields, replacing anything the
// model invented with the default value for that field.
func (s Strategy) Normalize() Strategy {
	def := DefaultStrategy()

	switch s.StrategyLabel {
	case StrategySupport, StrategyChallenge, StrategyExplore, StrategyReinforce:
	default:
		s.StrategyLabel = def.StrategyLabel
	}
	switch s.Verbosity {
	case VerbosityBrief, VerbosityNormal, VerbosityDetailed:
	default:
		s.Verbosity = def.Verbosity
	}
	switch s.Pacing {
	case PacingSlow, PacingNormal, PacingFast:
	default:
		s.Pacing = def.Pacing
	}
	if strings.TrimSpace(s.Tone) == "" {
		s.Tone = def.Tone
	}
	return s
}
