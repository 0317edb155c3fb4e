package narrative

import (
	"context"
	"strings"
	"sync"
)

// MockLLM is a deterministic LLM implementation for testing.
type MockLLM struct {
	// Response is the fixed text returned by Generate.
	// If empty, a default response is generated from the prompt.
	Response string

	// Error, if set, is returned by Generate instead of a response.
	Error error

	// LastPrompt stores the most recent prompt passed to Generate.
	LastPrompt string

	// Calls counts Generate invocations.
	Calls int

	mu sync.Mutex
}

// NewMockLLM creates a mock LLM with the given fixed response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: response}
}

// NewMockLLMWithError creates a mock LLM that always returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

// Generate returns the configured response or generates a deterministic one.
func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastPrompt = prompt
	m.Calls++

	if m.Error != nil {
		return "", m.Error
	}

	if m.Response != "" {
		return m.Response, nil
	}

	return generateMockResponse(prompt), nil
}

// Source adapts the mock to an LLMSource.
func (m *MockLLM) Source() LLMSource {
	return func(context.Context) (LLM, error) {
		return m, nil
	}
}

// generateMockResponse builds a tiny story around the last prompt line that
// carries the scenario.
func generateMockResponse(prompt string) string {
	scenario := "something"
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "IMAGE DESCRIPTION:"); ok {
			scenario = strings.TrimSpace(rest)
		}
	}

	var b strings.Builder
	b.WriteString("Once upon a time there was ")
	b.WriteString(scenario)
	b.WriteString(". It was a happy day. The end.")
	return b.String()
}
