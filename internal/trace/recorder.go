package trace

import (
	"context"
	"log/slog"
	"time"

	inats "github.com/synapse-labs/synapse/internal/nats"
)

// Recorder records pipeline steps. Implementations must never block the
// caller meaningfully and must never return an error into pipeline code.
type Recorder interface {
	Record(ctx context.Context, traceID, requestID, agentName, action, details string)
}

// NatsRecorder publishes trace events to JetStream, fire and forget.
type NatsRecorder struct {
	pub *inats.Publisher
}

// NewNatsRecorder creates a recorder backed by a JetStream publisher.
func NewNatsRecorder(pub *inats.Publisher) *NatsRecorder {
	return &NatsRecorder{pub: pub}
}

// Record publishes the event asynchronously. The pipeline never waits for a
// stream ack; publish failures are logged and dropped.
func (r *NatsRecorder) Record(_ context.Context, traceID, requestID, agentName, action, details string) {
	event := Event{
		TraceID:   traceID,
		RequestID: requestID,
		AgentName: agentName,
		Action:    action,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}

	if _, err := r.pub.PublishAsync(inats.SubjectTraceEvent, event); err != nil {
		slog.Debug("trace publish dropped", "error", err, "agent", agentName, "action", action)
	}
}

// NopRecorder discards everything. Used when NATS is not configured.
type NopRecorder struct{}

// Record does nothing.
func (NopRecorder) Record(context.Context, string, string, string, string, string) {}
