package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-labs/synapse/internal/agent"
	"github.com/synapse-labs/synapse/internal/config"
	"github.com/synapse-labs/synapse/internal/conversation"
	"github.com/synapse-labs/synapse/internal/gateway"
	"github.com/synapse-labs/synapse/internal/memory"
	"github.com/synapse-labs/synapse/internal/trace"
	"github.com/synapse-labs/synapse/internal/worker"
)

// memRepo is an in-memory memory.Repository with optional failure injection.
type memRepo struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*memory.UserMemory
	failAll  bool
	evalSeen chan struct{}
}

func newMemRepo() *memRepo {
	return &memRepo{
		records:  make(map[uuid.UUID]*memory.UserMemory),
		evalSeen: make(chan struct{}, 16),
	}
}

func (f *memRepo) EnsureExists(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return memory.ErrUnavailable
	}
	if _, ok := f.records[userID]; !ok {
		f.records[userID] = &memory.UserMemory{UserID: userID}
	}
	return nil
}

func (f *memRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*memory.UserMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, memory.ErrUnavailable
	}
	m, ok := f.records[userID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *memRepo) AppendEvaluation(_ context.Context, userID uuid.UUID, eval memory.EvaluationResult, maxEntries int) error {
	f.mu.Lock()
	m := f.records[userID]
	m.EvaluationHistory = append(m.EvaluationHistory, eval)
	if len(m.EvaluationHistory) > maxEntries {
		m.EvaluationHistory = m.EvaluationHistory[len(m.EvaluationHistory)-maxEntries:]
	}
	f.mu.Unlock()
	f.evalSeen <- struct{}{}
	return nil
}

func (f *memRepo) AppendSessionDate(_ context.Context, userID uuid.UUID, date string, maxEntries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.records[userID]
	m.SessionDates = append(m.SessionDates, date)
	return nil
}

func (f *memRepo) MergeProfile(_ context.Context, _ uuid.UUID, _ map[string]any) error { return nil }

func (f *memRepo) SetStruggles(_ context.Context, userID uuid.UUID, struggles []memory.Struggle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID].Struggles = struggles
	return nil
}

func (f *memRepo) SetTraits(_ context.Context, userID uuid.UUID, traits memory.Traits) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID].Traits = traits
	return nil
}

func (f *memRepo) SetEffort(_ context.Context, userID uuid.UUID, effort memory.EffortMetrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID].Effort = effort
	return nil
}

func (f *memRepo) SetOnboarding(_ context.Context, userID uuid.UUID, ob memory.Onboarding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID].Onboarding = ob
	return nil
}

func (f *memRepo) history(userID uuid.UUID) []memory.EvaluationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.records[userID]
	if !ok {
		return nil
	}
	return append([]memory.EvaluationResult(nil), m.EvaluationHistory...)
}

// convRepo is an in-memory conversation.Repository.
type convRepo struct {
	mu       sync.Mutex
	convs    map[uuid.UUID]conversation.Conversation
	msgs     map[uuid.UUID][]conversation.Message
	failSave bool
}

func newConvRepo() *convRepo {
	return &convRepo{
		convs: make(map[uuid.UUID]conversation.Conversation),
		msgs:  make(map[uuid.UUID][]conversation.Message),
	}
}

func (f *convRepo) Create(_ context.Context, conv *conversation.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	f.convs[conv.ID] = *conv
	return nil
}

func (f *convRepo) GetByID(_ context.Context, id, userID uuid.UUID) (*conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return &c, nil
}

func (f *convRepo) MostRecent(_ context.Context, userID uuid.UUID) (*conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *conversation.Conversation
	for id := range f.convs {
		c := f.convs[id]
		if c.UserID != userID {
			continue
		}
		if latest == nil || c.UpdatedAt.After(latest.UpdatedAt) {
			latest = &c
		}
	}
	return latest, nil
}

func (f *convRepo) List(_ context.Context, _ uuid.UUID, _, _ int) ([]conversation.Conversation, int64, error) {
	return nil, 0, nil
}

func (f *convRepo) Delete(_ context.Context, _, _ uuid.UUID) error { return nil }

func (f *convRepo) AppendMessage(_ context.Context, msg *conversation.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("db down")
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	f.msgs[msg.ConversationID] = append(f.msgs[msg.ConversationID], *msg)
	return nil
}

func (f *convRepo) RecentMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.msgs[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *convRepo) ListMessages(_ context.Context, conversationID uuid.UUID, _, _ int) ([]conversation.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs[conversationID], int64(len(f.msgs[conversationID])), nil
}

// scriptedGateway routes canned responses by sniffing the prompt, with an
// optional delay on evaluator calls.
type scriptedGateway struct {
	planOut   string
	genOut    string
	evalOut   string
	failAll   bool
	evalDelay time.Duration
}

func (s *scriptedGateway) Complete(_ context.Context, req gateway.CompletionRequest) (string, error) {
	if s.failAll {
		return "", gateway.ErrTimeout
	}
	switch {
	case strings.Contains(req.Prompt, "planning step"):
		return s.planOut, nil
	case strings.Contains(req.Prompt, "mentor-student interaction"):
		if s.evalDelay > 0 {
			time.Sleep(s.evalDelay)
		}
		return s.evalOut, nil
	default:
		return s.genOut, nil
	}
}

type testEnv struct {
	orch  *Orchestrator
	mems  *memRepo
	convs *convRepo
	queue *worker.Queue
}

func setup(t *testing.T, gw gateway.Completer, mems *memRepo, convs *convRepo) *testEnv {
	t.Helper()

	cfg := config.PipelineConfig{
		RecentTurns:      5,
		EvalHistoryCap:   20,
		SessionDatesCap:  100,
		QueueSize:        16,
		Workers:          2,
		ShortTermTTLSec:  3600,
		TraitRecalcEvery: 5,
	}

	memSvc := memory.NewService(mems, nil, cfg)
	convSvc := conversation.NewService(convs)
	queue := worker.NewQueue(cfg.QueueSize, cfg.Workers)
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	orch := New(
		agent.NewContextAssembler(memSvc, nil, nil, cfg.RecentTurns),
		agent.NewStrategyPlanner(gw),
		agent.NewResponseGenerator(gw),
		agent.NewInteractionEvaluator(gw),
		convSvc,
		memSvc,
		queue,
		trace.NopRecorder{},
		cfg,
	)
	return &testEnv{orch: orch, mems: mems, convs: convs, queue: queue}
}

func defaultGateway() *scriptedGateway {
	return &scriptedGateway{
		planOut: `{"strategy_label": "support", "tone": "warm", "verbosity": "normal", "pacing": "normal", "should_ask_question": false}`,
		genOut:  "Here's one way to think about it.",
		evalOut: `{"clarity_score": 65, "confusion_trend": "improving", "understanding_delta": 5, "struggle_detected": null, "reasoning": "clear question"}`,
	}
}

func TestHandleReturnsReplyAndPersistsTurn(t *testing.T) {
	mems, convs := newMemRepo(), newConvRepo()
	env := setup(t, defaultGateway(), mems, convs)
	userID := uuid.New()

	result, err := env.orch.Handle(context.Background(), userID, nil, "how do goroutines work", "req-1")
	require.NoError(t, err)
	assert.Equal(t, "Here's one way to think about it.", result.Reply)

	msgs := convs.msgs[result.ConversationID]
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
}

func TestHandleReplyBeforeEvaluationWrite(t *testing.T) {
	gw := defaultGateway()
	gw.evalDelay = 150 * time.Millisecond
	mems, convs := newMemRepo(), newConvRepo()
	env := setup(t, gw, mems, convs)
	userID := uuid.New()

	start := time.Now()
	_, err := env.orch.Handle(context.Background(), userID, nil, "hello", "req-1")
	require.NoError(t, err)

	// The caller unblocked well before the delayed evaluation finished,
	// and no evaluation is committed yet.
	assert.Less(t, time.Since(start), gw.evalDelay)
	assert.Empty(t, mems.history(userID))

	select {
	case <-mems.evalSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation was never committed")
	}
	assert.Len(t, mems.history(userID), 1)
}

func TestHandleGracefulDegradationGatewayDown(t *testing.T) {
	mems, convs := newMemRepo(), newConvRepo()
	env := setup(t, &scriptedGateway{failAll: true}, mems, convs)

	result, err := env.orch.Handle(context.Background(), uuid.New(), nil, "anyone there?", "req-1")
	require.NoError(t, err)
	assert.Equal(t, agent.FallbackReply, result.Reply)
}

func TestHandleFatalWhenMessagePersistFails(t *testing.T) {
	mems, convs := newMemRepo(), newConvRepo()
	convs.failSave = true
	env := setup(t, defaultGateway(), mems, convs)

	_, err := env.orch.Handle(context.Background(), uuid.New(), nil, "hi", "req-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrUnavailable)
}

func TestHandleFailsafeClampsConfusedTurn(t *testing.T) {
	gw := defaultGateway()
	gw.evalOut = `{"clarity_score": 90, "confusion_trend": "improving", "understanding_delta": 9, "struggle_detected": null, "reasoning": "looks great"}`
	mems, convs := newMemRepo(), newConvRepo()
	env := setup(t, gw, mems, convs)
	userID := uuid.New()

	// Seed a previous committed clarity of 60.
	require.NoError(t, mems.EnsureExists(context.Background(), userID))
	require.NoError(t, mems.AppendEvaluation(context.Background(), userID,
		memory.EvaluationResult{ClarityScore: 60, Trend: memory.TrendStable}, 20))
	<-mems.evalSeen

	_, err := env.orch.Handle(context.Background(), userID, nil, "I don't understand this at all", "req-1")
	require.NoError(t, err)

	select {
	case <-mems.evalSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation was never committed")
	}

	history := mems.history(userID)
	require.Len(t, history, 2)
	committed := history[1]
	assert.LessOrEqual(t, committed.ClarityScore, 60)
	assert.LessOrEqual(t, committed.Delta, 0)
	assert.NotEqual(t, memory.TrendImproving, committed.Trend)
	assert.NotEqual(t, memory.StruggleNone, committed.StruggleDetected)
	assert.True(t, committed.FailsafeApplied)
}

func TestHandleCancelledRequestStillEvaluates(t *testing.T) {
	gw := defaultGateway()
	gw.evalDelay = 50 * time.Millisecond
	mems, convs := newMemRepo(), newConvRepo()
	env := setup(t, gw, mems, convs)
	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := env.orch.Handle(ctx, userID, nil, "quick question", "req-1")
	require.NoError(t, err)
	cancel() // client disconnects right after the reply

	select {
	case <-mems.evalSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation did not survive request cancellation")
	}
	assert.Len(t, mems.history(userID), 1)
}

func TestHandleUnknownConversationIsNotFound(t *testing.T) {
	mems, convs := newMemRepo(), newConvRepo()
	env := setup(t, defaultGateway(), mems, convs)

	// A bogus id is the client's mistake, not a store outage.
	bogus := uuid.New()
	_, err := env.orch.Handle(context.Background(), uuid.New(), &bogus, "hi", "req-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.False(t, errors.Is(err, memory.ErrUnavailable))
}

func TestHandleReusesExplicitConversation(t *testing.T) {
	mems, convs := newMemRepo(), newConvRepo()
	env := setup(t, defaultGateway(), mems, convs)
	userID := uuid.New()

	first, err := env.orch.Handle(context.Background(), userID, nil, "first", "req-1")
	require.NoError(t, err)

	second, err := env.orch.Handle(context.Background(), userID, &first.ConversationID, "second", "req-2")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, convs.msgs[first.ConversationID], 4)
}
