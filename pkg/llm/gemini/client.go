package gemini

import (
	"context"
	"errors"
	"sync"

	"fingerbot/pkg/llm"

	"google.golang.org/genai"
)

// GeminiClient Google Gemini API client。
// SDK clients are cached per secret so credential rotation does not rebuild
// transports on every call.
type GeminiClient struct {
	model string

	mu      sync.Mutex
	clients map[string]*genai.Client // secret -> SDK client
}

// NewGeminiClient creates a Gemini provider for one model.
func NewGeminiClient(model string) *GeminiClient {
	return &GeminiClient{
		model:   model,
		clients: make(map[string]*genai.Client),
	}
}

func (g *GeminiClient) Name() string {
	return "gemini/" + g.model
}

func (g *GeminiClient) sdkClient(ctx context.Context, secret string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cached, ok := g.clients[secret]; ok {
		return cached, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  secret,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	g.clients[secret] = client
	return client, nil
}

// Complete performs one non-streaming generation call.
func (g *GeminiClient) Complete(ctx context.Context, secret, prompt string) (*llm.Completion, error) {
	client, err := g.sdkClient(ctx, secret)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &llm.APIError{StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return nil, err
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &llm.Completion{Text: resp.Text(), TokensUsed: tokens}, nil
}
