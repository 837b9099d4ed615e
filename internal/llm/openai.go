package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to an OpenAI-compatible chat endpoint (Ollama's /v1 in
// the default deployment).
type OpenAIClient struct {
	client  *openai.Client
	timeout time.Duration
}

// NewOpenAIClient creates a client for the given base URL. apiKey may be any
// non-empty placeholder for local Ollama. timeout bounds each call; zero
// means no per-call deadline beyond the caller's ctx.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		timeout: timeout,
	}
}

// Complete sends prompt as a single user message and returns the raw
// response text. Failures map onto ErrTimeout and ErrUnavailable.
func (c *OpenAIClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: model %s", ErrTimeout, model)
		}
		return "", fmt.Errorf("%w: model %s: %v", ErrUnavailable, model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model %s returned no choices", ErrUnavailable, model)
	}
	return resp.Choices[0].Message.Content, nil
}
