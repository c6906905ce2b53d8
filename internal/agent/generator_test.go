package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func overlongReply(lines int) string {
	parts := make([]string, lines)
	for i := range parts {
		parts[i] = "line of mentor advice"
	}
	return strings.Join(parts, "\n")
}

func TestGenerateEnforcesVerbosityCaps(t *testing.T) {
	cases := []struct {
		verbosity string
		maxLines  int
	}{
		{VerbosityBrief, 4},
		{VerbosityNormal, 6},
		{VerbosityDetailed, 8},
	}

	for _, tc := range cases {
		gen := NewResponseGenerator(&stubCompleter{out: overlongReply(12)})
		strategy := DefaultStrategy()
		strategy.Verbosity = tc.verbosity

		reply := gen.Generate(context.Background(), &UserContext{}, "msg", strategy)
		assert.LessOrEqual(t, len(strings.Split(reply, "\n")), tc.maxLines, "verbosity: %s", tc.verbosity)
	}
}

func TestGenerateFallbackOnGatewayFailure(t *testing.T) {
	gen := NewResponseGenerator(&stubCompleter{err: errors.New("timeout")})

	reply := gen.Generate(context.Background(), &UserContext{}, "msg", DefaultStrategy())
	assert.Equal(t, FallbackReply, reply)
}

func TestGenerateFallbackOnEmptyOutput(t *testing.T) {
	gen := NewResponseGenerator(&stubCompleter{out: "   \n  "})

	reply := gen.Generate(context.Background(), &UserContext{}, "msg", DefaultStrategy())
	assert.Equal(t, FallbackReply, reply)
}

func TestEnforceLineCapSkipsBlankLines(t *testing.T) {
	reply := "first\n\n\nsecond\n\nthird"
	assert.Equal(t, "first\nsecond\nthird", enforceLineCap(reply, 6))
}

func TestEnforceLineCapShortReplyUntouched(t *testing.T) {
	assert.Equal(t, "just one line", enforceLineCap("just one line", 4))
}

func TestGeneratePromptCarriesStrategyConstraints(t *testing.T) {
	stub := &stubCompleter{out: "ok"}
	gen := NewResponseGenerator(stub)

	strategy := Strategy{
		StrategyLabel:     StrategyChallenge,
		Tone:              "direct",
		Verbosity:         VerbosityBrief,
		Pacing:            PacingFast,
		ShouldAskQuestion: true,
	}
	gen.Generate(context.Background(), &UserContext{}, "msg", strategy)

	assert.Contains(t, stub.lastPrompt, "At most 4 lines")
	assert.Contains(t, stub.lastPrompt, "Tone: direct")
	assert.Contains(t, stub.lastPrompt, "exactly one question")
}
