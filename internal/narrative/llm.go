// Package narrative turns a scene description into a short children's story.
// It defines a provider-agnostic LLM interface with a hosted OpenAI backend,
// a local Ollama backend and a deterministic mock for testing. The generator
// selects the backend from the caller's model choice and applies the prompt
// template that backend expects.
package narrative

import (
	"context"
	"errors"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	// Returns the generated text or an error if generation fails.
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "gpt-3.5-turbo")
	Model string

	// Temperature controls randomness (0.0 = deterministic, 2.0 = very random)
	Temperature float64

	// TopP limits sampling to the smallest token set with this total probability (0 = provider default)
	TopP float64

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL overrides the provider endpoint
	BaseURL string
}

// DefaultLLMConfig returns the settings for the hosted storyteller model.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-3.5-turbo",
		Temperature: 0.8,
	}
}

// DefaultLocalLLMConfig returns the sampling settings for the local model.
func DefaultLocalLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "young-children-storyteller",
		Temperature: 0.9,
		TopP:        0.95,
		MaxTokens:   800,
	}
}
