package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient returns scripted responses in order, cycling when exhausted.
// The "mock" provider uses it for offline dry runs; tests script it
// directly.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	calls     int
}

// NewMockClient returns a mock with a single neutral response.
func NewMockClient() *MockClient {
	return &MockClient{Responses: []string{"I don't have a strong opinion on that."}}
}

// Complete implements Client with the next scripted response or error.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++

	if len(m.Errs) > 0 {
		if err := m.Errs[i%len(m.Errs)]; err != nil {
			return "", err
		}
	}
	if len(m.Responses) == 0 {
		return "", &PermanentError{Err: fmt.Errorf("mock has no scripted responses")}
	}
	return m.Responses[i%len(m.Responses)], nil
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
