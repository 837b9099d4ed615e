package llm

import (
	"context"
	"sync"
)

// MockClient is a scriptable Client for tests. Respond is called with each
// prompt; when nil, prompts are echoed back unchanged.
type MockClient struct {
	Respond func(model, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// Complete records the prompt and returns the scripted response.
func (m *MockClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.Respond == nil {
		return prompt, nil
	}
	return m.Respond(model, prompt)
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompt returns the i-th recorded prompt, or "" when out of range.
func (m *MockClient) Prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.prompts) {
		return ""
	}
	return m.prompts[i]
}
