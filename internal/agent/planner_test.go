package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synapse-labs/synapse/internal/memory"
)

func TestPlanDefaultOnGatewayFailure(t *testing.T) {
	planner := NewStrategyPlanner(&stubCompleter{err: errors.New("down")})

	s := planner.Plan(context.Background(), &UserContext{}, "msg")
	assert.Equal(t, DefaultStrategy(), s)
}

func TestPlanDefaultOnMalformedOutput(t *testing.T) {
	planner := NewStrategyPlanner(&stubCompleter{out: "I think we should be supportive here"})

	s := planner.Plan(context.Background(), &UserContext{}, "msg")
	assert.Equal(t, DefaultStrategy(), s)
}

func TestPlanParsesStrategy(t *testing.T) {
	planner := NewStrategyPlanner(&stubCompleter{
		out: `{"strategy_label": "challenge", "tone": "direct", "verbosity": "brief", "pacing": "fast", "should_ask_question": true}`,
	})

	s := planner.Plan(context.Background(), &UserContext{}, "msg")
	assert.Equal(t, StrategyChallenge, s.StrategyLabel)
	assert.Equal(t, VerbosityBrief, s.Verbosity)
	assert.True(t, s.ShouldAskQuestion)
}

func TestPlanNormalizesInventedEnums(t *testing.T) {
	planner := NewStrategyPlanner(&stubCompleter{
		out: `{"strategy_label": "interrogate", "tone": "", "verbosity": "maximal", "pacing": "blistering", "should_ask_question": false}`,
	})

	s := planner.Plan(context.Background(), &UserContext{}, "msg")
	assert.Equal(t, StrategySupport, s.StrategyLabel)
	assert.Equal(t, VerbosityNormal, s.Verbosity)
	assert.Equal(t, PacingNormal, s.Pacing)
	assert.Equal(t, "warm", s.Tone)
}

func TestPlanLowClarityBiasInPrompt(t *testing.T) {
	stub := &stubCompleter{out: `{}`}
	planner := NewStrategyPlanner(stub)
	uc := contextWithClarity(30)

	planner.Plan(context.Background(), uc, "msg")
	assert.Contains(t, stub.lastPrompt, "pacing=slow")
	assert.Contains(t, stub.lastPrompt, "strategy_label=support")
}

func TestPlanHighClarityBiasInPrompt(t *testing.T) {
	stub := &stubCompleter{out: `{}`}
	planner := NewStrategyPlanner(stub)
	uc := contextWithClarity(80)

	planner.Plan(context.Background(), uc, "msg")
	assert.Contains(t, stub.lastPrompt, "strategy_label=challenge")
}

func TestPlanWorseningTrendForcesSupportiveTone(t *testing.T) {
	stub := &stubCompleter{out: `{}`}
	planner := NewStrategyPlanner(stub)
	uc := &UserContext{
		EvaluationHistory: []memory.EvaluationResult{
			{ClarityScore: 55, Trend: memory.TrendWorsening},
		},
	}

	planner.Plan(context.Background(), uc, "msg")
	assert.Contains(t, stub.lastPrompt, "tone MUST be supportive")
}

func TestPlanNoHistoryNoBiasHints(t *testing.T) {
	stub := &stubCompleter{out: `{}`}
	planner := NewStrategyPlanner(stub)

	planner.Plan(context.Background(), &UserContext{}, "msg")
	assert.NotContains(t, stub.lastPrompt, "PLANNING CONSTRAINTS")
}
