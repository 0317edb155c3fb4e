package narrative

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// LocalLLM implements the LLM interface against a local Ollama runtime.
// Prompts are sent raw, so callers supply the model's chat template.
type LocalLLM struct {
	client *api.Client
	config LLMConfig
}

// NewLocalLLM creates a client for the Ollama server at host. An empty host
// falls back to OLLAMA_HOST.
func NewLocalLLM(host string, config LLMConfig) (*LocalLLM, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ollama host %q: %v", ErrInvalidConfig, host, err)
		}
		hostURL = u
	}

	return &LocalLLM{
		client: api.NewClient(hostURL, http.DefaultClient),
		config: config,
	}, nil
}

// Verify checks that the server is reachable and the model is available.
func (l *LocalLLM) Verify(ctx context.Context) error {
	if err := l.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: ollama unreachable: %w", ErrLLMFailed, err)
	}
	if _, err := l.client.Show(ctx, &api.ShowRequest{Model: l.config.Model}); err != nil {
		return fmt.Errorf("%w: model %s unavailable: %w", ErrLLMFailed, l.config.Model, err)
	}
	return nil
}

// Generate runs a single non-streaming completion.
func (l *LocalLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	stream := false
	options := map[string]any{}
	if l.config.Temperature > 0 {
		options["temperature"] = l.config.Temperature
	}
	if l.config.TopP > 0 {
		options["top_p"] = l.config.TopP
	}
	if l.config.MaxTokens > 0 {
		options["num_predict"] = l.config.MaxTokens
	}

	req := api.GenerateRequest{
		Model:   l.config.Model,
		Prompt:  prompt,
		Raw:     true,
		Stream:  &stream,
		Options: options,
	}

	var b strings.Builder
	err := l.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := b.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	return b.String(), nil
}

// LLMSource hands out an LLM, building it on first use if needed.
type LLMSource func(ctx context.Context) (LLM, error)

// LocalResource owns the process-wide local generation backend. The backend
// is built and verified once; every later caller gets the same handle, or
// the same initialisation error.
type LocalResource struct {
	host    string
	config  LLMConfig
	timeout time.Duration

	once sync.Once
	llm  *LocalLLM
	err  error
}

// NewLocalResource creates an uninitialised resource.
func NewLocalResource(host string, config LLMConfig) *LocalResource {
	return &LocalResource{
		host:    host,
		config:  config,
		timeout: 30 * time.Second,
	}
}

// Get returns the shared backend. Cancelling ctx does not abort an
// initialisation other callers may be waiting on.
func (r *LocalResource) Get(ctx context.Context) (LLM, error) {
	r.once.Do(func() {
		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		llm, err := NewLocalLLM(r.host, r.config)
		if err != nil {
			r.err = err
			return
		}
		if err := llm.Verify(initCtx); err != nil {
			r.err = err
			return
		}
		r.llm = llm
	})

	if r.err != nil {
		return nil, r.err
	}
	return r.llm, nil
}
