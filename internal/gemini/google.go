package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// googleBackend adapts *genai.Client to the backend interface.
type googleBackend struct {
	client *genai.Client
}

// newGoogleBackend creates the production SDK client for one API key.
func newGoogleBackend(ctx context.Context, apiKey string) (backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &googleBackend{client: client}, nil
}

func (g *googleBackend) embed(ctx context.Context, model, text, taskType string, dim int32) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, model,
		genai.Text(text),
		&genai.EmbedContentConfig{
			TaskType:             taskType,
			OutputDimensionality: &dim,
		})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

func (g *googleBackend) generate(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(DefaultTemperature),
	}
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty generation response")
	}
	return text, nil
}
