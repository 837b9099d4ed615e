// Package llm provides the client boundary to an external chat-completion model.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the model service rejected or failed the call.
var ErrUnavailable = errors.New("llm service unavailable")

// ErrTimeout indicates the call exceeded the configured deadline.
var ErrTimeout = errors.New("llm call timed out")

// Client is a synchronous chat-completion call to an external LLM.
// Implementations must honor ctx cancellation.
type Client interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// AvailableModels returns the known model names exposed by the local
// Ollama-compatible service.
func AvailableModels() []string {
	return []string{
		"llama3", "llama3:8b", "llama3:70b",
		"mistral", "mistral-small", "mixtral",
		"gemma:7b", "gemma:2b",
		"phi3:small", "phi3:medium",
		"codellama", "llava",
	}
}
