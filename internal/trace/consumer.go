package trace

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/synapse-labs/synapse/internal/nats"
)

// Consumer listens on the trace event subject and persists entries.
type Consumer struct {
	repo        *Repository
	consumerMgr *inats.ConsumerManager
}

// NewConsumer creates a new trace Consumer.
func NewConsumer(repo *Repository, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, "trace-persister", inats.SubjectTraceEvent)
	if err != nil {
		return err
	}

	slog.Info("trace consumer started", "consumer", "trace-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("trace consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("trace consumer: unmarshaling event", "error", err)
		_ = msg.Nak()
		return
	}

	entry := &Entry{
		TraceID:   event.TraceID,
		RequestID: event.RequestID,
		AgentName: event.AgentName,
		Action:    event.Action,
		Details:   event.Details,
		Timestamp: event.Timestamp,
	}

	if err := c.repo.Insert(ctx, entry); err != nil {
		slog.Error("trace consumer: persisting entry", "error", err, "agent", event.AgentName)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
}
