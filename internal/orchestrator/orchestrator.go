// Package orchestrator sequences the response pipeline for each incoming
// message: durable persist, context assembly, planning, generation, durable
// reply persist, then detached evaluation. The caller gets the reply after
// step five; everything after runs on the background queue and can neither
// delay nor fail the request.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-labs/synapse/internal/agent"
	"github.com/synapse-labs/synapse/internal/config"
	"github.com/synapse-labs/synapse/internal/conversation"
	"github.com/synapse-labs/synapse/internal/memory"
	"github.com/synapse-labs/synapse/internal/metrics"
	"github.com/synapse-labs/synapse/internal/trace"
	"github.com/synapse-labs/synapse/internal/worker"
)

// Pipeline states, recorded to the trace sink as the request advances.
const (
	stateReceived      = "RECEIVED"
	stateContextReady  = "CONTEXT_READY"
	stateStrategyReady = "STRATEGY_READY"
	stateResponseReady = "RESPONSE_READY"
	stateEvaluating    = "EVALUATING"
	stateSettled       = "SETTLED"
)

// ErrOnboardingRequired gates chat until intake is done.
var ErrOnboardingRequired = errors.New("onboarding not completed")

// Result is what one handled message produces for the caller.
type Result struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Reply          string    `json:"reply"`
}

// Orchestrator owns the pipeline sequencing. All collaborators are injected;
// it holds no global state.
type Orchestrator struct {
	assembler *agent.ContextAssembler
	planner   *agent.StrategyPlanner
	generator *agent.ResponseGenerator
	evaluator *agent.InteractionEvaluator
	convs     *conversation.Service
	mem       *memory.Service
	queue     *worker.Queue
	recorder  trace.Recorder
	cfg       config.PipelineConfig
}

// New creates an orchestrator.
func New(
	assembler *agent.ContextAssembler,
	planner *agent.StrategyPlanner,
	generator *agent.ResponseGenerator,
	evaluator *agent.InteractionEvaluator,
	convs *conversation.Service,
	mem *memory.Service,
	queue *worker.Queue,
	recorder trace.Recorder,
	cfg config.PipelineConfig,
) *Orchestrator {
	return &Orchestrator{
		assembler: assembler,
		planner:   planner,
		generator: generator,
		evaluator: evaluator,
		convs:     convs,
		mem:       mem,
		queue:     queue,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// Handle runs the synchronous half of the pipeline and returns the reply.
// Memory store failures while persisting either side of the turn are fatal;
// gateway failures never are. The evaluation runs detached after return.
func (o *Orchestrator) Handle(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, message, requestID string) (*Result, error) {
	start := time.Now()
	traceID := uuid.NewString()
	o.recorder.Record(ctx, traceID, requestID, "orchestrator", stateReceived, "")

	conv, err := o.convs.GetOrCreateActive(ctx, userID, conversationID, message)
	if err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, conversation.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: resolving conversation: %v", memory.ErrUnavailable, err)
	}

	// Step 1: the user's message is persisted before anything else. Losing
	// a sent message is worse than added latency or a failed reply.
	if _, err := o.convs.Append(ctx, conv.ID, conversation.RoleUser, message); err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: persisting user message: %v", memory.ErrUnavailable, err)
	}

	// Step 2: assemble the context snapshot.
	uc, err := o.assembler.Assemble(ctx, userID, conv.ID)
	if err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	o.recorder.Record(ctx, traceID, requestID, "assembler", stateContextReady, "")

	// Effort accounting is activity-only bookkeeping; losing it costs a
	// counter, not a message, so it never fails the request.
	if mem, merr := o.mem.Get(ctx, userID); merr == nil && mem != nil {
		if aerr := o.mem.RecordActivity(ctx, mem, time.Now()); aerr != nil {
			slog.Warn("pipeline: effort update failed", "error", aerr, "user_id", userID)
		}
	}

	// Steps 3 and 4: plan and generate. Both degrade internally and never
	// return errors.
	strategy := o.planner.Plan(ctx, uc, message)
	o.recorder.Record(ctx, traceID, requestID, "planner", stateStrategyReady, strategy.StrategyLabel)

	reply := o.generator.Generate(ctx, uc, message, strategy)

	// Step 5: the reply must be durable before the caller sees it.
	if _, err := o.convs.Append(ctx, conv.ID, conversation.RoleAssistant, reply); err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: persisting mentor response: %v", memory.ErrUnavailable, err)
	}
	o.recorder.Record(ctx, traceID, requestID, "generator", stateResponseReady, "")

	o.cacheTurns(ctx, conv.ID, message, reply)

	// Step 6: detached evaluation. The request context must not cancel it;
	// its writes are valuable even if the client is gone.
	bg := context.WithoutCancel(ctx)
	submitted := o.queue.Submit(worker.Task{
		Name: "evaluate-interaction",
		Run: func(taskCtx context.Context) {
			o.recorder.Record(bg, traceID, requestID, "evaluator", stateEvaluating, "")
			o.evaluateAndCommit(taskCtx, uc, message, reply)
			o.recorder.Record(bg, traceID, requestID, "evaluator", stateSettled, "")
		},
	})
	if !submitted {
		slog.Warn("pipeline: evaluation dropped, queue full", "user_id", userID)
	}

	metrics.PipelineRequestsTotal.WithLabelValues("ok").Inc()
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	return &Result{ConversationID: conv.ID, Reply: reply}, nil
}

// cacheTurns refreshes the Redis conversation window. Best effort only.
func (o *Orchestrator) cacheTurns(ctx context.Context, convID uuid.UUID, message, reply string) {
	st := o.mem.ShortTerm()
	if st == nil {
		return
	}

	now := time.Now().UTC()
	for _, turn := range []memory.Turn{
		{Role: conversation.RoleUser, Content: message, CreatedAt: now},
		{Role: conversation.RoleAssistant, Content: reply, CreatedAt: now},
	} {
		if err := st.AppendTurn(ctx, convID, turn, o.cfg.RecentTurns, o.cfg.ShortTermTTLSec); err != nil {
			slog.Warn("pipeline: turn cache write failed", "error", err, "conversation_id", convID)
			return
		}
	}
}

// evaluateAndCommit runs the evaluator, applies the fail-safe and commits
// the result. Every failure here is logged and swallowed; nothing from this
// path reaches a user.
func (o *Orchestrator) evaluateAndCommit(ctx context.Context, uc *agent.UserContext, message, reply string) {
	prevClarity := uc.PreviousClarity()

	result := o.evaluator.Evaluate(ctx, message, reply, uc)
	committed := agent.ApplyFailsafe(result, message, prevClarity)
	if committed.FailsafeApplied {
		metrics.FailsafeOverridesTotal.Inc()
		slog.Info("failsafe override applied",
			"user_id", uc.UserID,
			"model_clarity", result.ClarityScore,
			"committed_clarity", committed.ClarityScore,
		)
	}

	if err := o.mem.RecordEvaluation(ctx, uc.UserID, committed); err != nil {
		slog.Error("pipeline: evaluation commit failed", "error", err, "user_id", uc.UserID)
		return
	}

	if committed.StruggleDetected != memory.StruggleNone || agent.DetectStruggleIndicator(message) {
		topic := committed.StruggleDetected
		if topic == memory.StruggleNone || topic == "" {
			topic = "general difficulty"
		}
		if mem, err := o.mem.Get(ctx, uc.UserID); err == nil && mem != nil {
			if err := o.mem.RecordStruggles(ctx, mem, []string{topic}, time.Now()); err != nil {
				slog.Warn("pipeline: struggle update failed", "error", err, "user_id", uc.UserID)
			}
		}
	}
}
