// Package gateway abstracts the upstream language model provider behind a
// small completion interface so the agents never talk to a vendor SDK
// directly.
package gateway

import "context"

// CompletionRequest describes a single prompt sent to the model provider.
type CompletionRequest struct {
	// Prompt is the full prompt text, including any instructions and context.
	Prompt string
	// Structured requests a JSON object response from the provider.
	Structured bool
}

// Completer produces a completion for a prompt. Implementations must honor
// context cancellation and deadlines.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
