package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds pipeline trace events.
const StreamEvents = "SYNAPSE_EVENTS"

// Subject constants.
const (
	SubjectTraceEvent = "synapse.events.trace"
)
