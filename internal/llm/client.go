// Package llm provides the external generator client used as the
// stabilization loop's regenerate callback. The pipeline itself only
// depends on the callback signature; this package supplies a production
// implementation backed by Google's GenAI API.
package llm

import (
	"context"
	"fmt"
	"strings"

	"arbiter/internal/logging"
	"arbiter/internal/stabilize"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Client is the minimal completion surface the pipeline needs.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// systemPrompt frames every regeneration request.
const systemPrompt = `You produce decision-matrix documents as a single JSON object with keys
"alternatives", "criteria", "scores", and "methodology". Criterion weights
must sum to 1.0 and every alternative needs a score for every criterion.
Return only the JSON object.`

// GenAIClient implements Client using google.golang.org/genai.
type GenAIClient struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewGenAIClient creates a GenAI-backed client.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client: client,
		model:  model,
		log:    logging.Get(logging.CategoryLLM),
	}, nil
}

// Complete sends a single prompt and returns the text response.
func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with an optional system instruction.
func (c *GenAIClient) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	c.log.Debug("generate content", zap.String("model", c.model), zap.Int("promptLen", len(prompt)))
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("GenAI returned an empty response")
	}
	return text, nil
}

// Regenerator adapts a Client into the stabilization loop's callback,
// framing every request with the document-format system prompt.
func Regenerator(client Client) stabilize.Regenerate {
	return func(ctx context.Context, prompt string) (string, error) {
		return client.CompleteWithSystem(ctx, systemPrompt, prompt)
	}
}
