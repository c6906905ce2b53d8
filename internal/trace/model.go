// Package trace is the pipeline's best-effort observability sink. Entries
// flow through NATS and land in Postgres for a polling viewer; nothing in
// the reply path ever waits on them, and dropping them under load is fine.
package trace

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one observed pipeline step.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	TraceID   string    `json:"trace_id"`
	RequestID string    `json:"request_id"`
	AgentName string    `json:"agent_name"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is the wire shape published to NATS.
type Event struct {
	TraceID   string    `json:"trace_id"`
	RequestID string    `json:"request_id"`
	AgentName string    `json:"agent_name"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
