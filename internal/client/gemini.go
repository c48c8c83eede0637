package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient completes coaching prompts with Gemini on Vertex AI,
// authenticated by the service's GCP service account. It is the "gemini"
// coaching provider.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClientWithCredentials creates a Vertex AI Gemini client in
// location for the account's project.
func NewGeminiClientWithCredentials(ctx context.Context, sa *ServiceAccount, location string) (*GeminiClient, error) {
	creds, err := sa.AuthCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to load vertex credentials: %w", err)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     sa.ProjectID,
		Location:    location,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: "gemini-2.0-flash"}, nil
}

// WithModel sets the model to use.
func (c *GeminiClient) WithModel(model string) *GeminiClient {
	c.model = model
	return c
}

// Complete answers prompt under the system instruction.
func (c *GeminiClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](completionTemperature),
		MaxOutputTokens: completionMaxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("vertex gemini completion failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
