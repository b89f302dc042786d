package openailm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fingerbot/pkg/llm"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client is a wrapper around the official OpenAI Go SDK.
// SDK clients are cached per secret so credential rotation does not rebuild
// HTTP transports on every call.
type Client struct {
	provider string
	model    string
	baseURL  string
	options  map[string]any

	mu      sync.Mutex
	clients map[string]*openai.Client // secret -> SDK client
}

// NewClient creates an OpenAI-compatible provider for one model.
func NewClient(provider, model, baseURL string, options map[string]any) *Client {
	return &Client{
		provider: provider,
		model:    model,
		baseURL:  baseURL,
		options:  options,
		clients:  make(map[string]*openai.Client),
	}
}

func (c *Client) Name() string {
	return c.provider + "/" + c.model
}

func (c *Client) sdkClient(secret string) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.clients[secret]; ok {
		return cached
	}

	opts := []option.RequestOption{option.WithAPIKey(secret)}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := openai.NewClient(opts...)
	c.clients[secret] = &client
	return &client
}

// Complete performs one non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, secret, prompt string) (*llm.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}

	var opts []option.RequestOption
	if t, ok := c.options["temperature"].(float64); ok {
		opts = append(opts, option.WithJSONSet("temperature", t))
	}

	resp, err := c.sdkClient(secret).Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &llm.APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &llm.Completion{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}
