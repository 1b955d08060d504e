package llm

import (
	"context"
	"strings"
	"sync"
)

// MockLLM replies with canned responses, chosen by the first registered
// substring found in the user prompt.
type MockLLM struct {
	mu        sync.Mutex
	responses map[string]string
	order     []string
	fallback  string
	err       error
	calls     int
}

func NewMockLLM() *MockLLM {
	return &MockLLM{responses: map[string]string{}, fallback: "{}"}
}

// On registers a reply for prompts containing substr.
func (m *MockLLM) On(substr, reply string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.responses[substr]; !ok {
		m.order = append(m.order, substr)
	}
	m.responses[substr] = reply
	return m
}

func (m *MockLLM) Default(reply string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = reply
	return m
}

// Fail makes every call return err.
func (m *MockLLM) Fail(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return m.GenerateWithSystem(ctx, "", prompt)
}

func (m *MockLLM) GenerateWithSystem(ctx context.Context, _, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	for _, k := range m.order {
		if strings.Contains(userPrompt, k) {
			return m.responses[k], nil
		}
	}
	return m.fallback, nil
}

func (m *MockLLM) ModelName() string {
	return "mock"
}
