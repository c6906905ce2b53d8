package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/synapse-labs/synapse/internal/config"
)

// GeminiGateway implements Completer against the Gemini API.
type GeminiGateway struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiGateway creates a gateway client for the configured model.
func NewGeminiGateway(ctx context.Context, cfg config.GatewayConfig) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiGateway{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete sends the prompt to the model and returns the raw response text.
// Each call is bounded by the configured per-request timeout.
func (g *GeminiGateway) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{}
	if req.Structured {
		genCfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			slog.Warn("gateway call timed out", "model", g.model, "elapsed", time.Since(start))
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrMalformedOutput
	}

	slog.Debug("gateway completion", "model", g.model, "elapsed", time.Since(start))
	return text, nil
}
