package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes JSON-encoded events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishAsync marshals data as JSON and hands it to JetStream without
// waiting for the stream ack. An error here means the message never left the
// client; ack failures surface on the returned future, which callers sending
// droppable events may ignore.
func (p *Publisher) PublishAsync(subject string, data any) (jetstream.PubAckFuture, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	fut, err := p.js.PublishAsync(subject, payload)
	if err != nil {
		return nil, fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return fut, nil
}
