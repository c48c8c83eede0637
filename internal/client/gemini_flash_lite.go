package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiFlashLiteClient completes coaching prompts through the Gemini
// Developer API with an API key. It is the "gemini-lite" coaching provider,
// for deployments without a GCP service account.
type GeminiFlashLiteClient struct {
	client *genai.Client
	model  string
}

// NewGeminiFlashLiteClient creates a Gemini Developer API client.
func NewGeminiFlashLiteClient(ctx context.Context, apiKey string) (*GeminiFlashLiteClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini api client: %w", err)
	}
	return &GeminiFlashLiteClient{client: client, model: "gemini-2.5-flash-lite"}, nil
}

// WithModel sets the model to use.
func (c *GeminiFlashLiteClient) WithModel(model string) *GeminiFlashLiteClient {
	c.model = model
	return c
}

// Close closes the client.
func (c *GeminiFlashLiteClient) Close() {
	c.client.Close()
}

// Complete answers prompt under the system instruction.
func (c *GeminiFlashLiteClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(completionTemperature)
	model.SetMaxOutputTokens(completionMaxTokens)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}
