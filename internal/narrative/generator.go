package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Yates-Labs/storyteller/internal/apperr"
)

const op = "generate story"

// ModelChoice selects the story generation backend.
type ModelChoice int

const (
	ModelUnknown ModelChoice = iota
	ModelOpenAI
	ModelLocal
)

// Display names accepted from clients.
const (
	ChoiceOpenAI = "OpenAI (GPT-3.5)"
	ChoiceLocal  = "Hugging Face (Alternative)"
)

func (m ModelChoice) String() string {
	switch m {
	case ModelOpenAI:
		return ChoiceOpenAI
	case ModelLocal:
		return ChoiceLocal
	default:
		return "unknown"
	}
}

// ParseModelChoice accepts the display names and the short aliases
// "openai" and "local".
func ParseModelChoice(s string) (ModelChoice, error) {
	switch strings.TrimSpace(s) {
	case ChoiceOpenAI, "openai":
		return ModelOpenAI, nil
	case ChoiceLocal, "local":
		return ModelLocal, nil
	default:
		return ModelUnknown, apperr.Errorf(apperr.KindUnsupportedModel, op,
			"unsupported model choice %q, please select a valid model", s)
	}
}

// Story is one generated story.
type Story struct {
	// Text is the trimmed model output
	Text string `json:"text"`

	// Choice is the backend that produced the story
	Choice ModelChoice `json:"-"`

	// Model is the backend model identifier
	Model string `json:"model"`

	// GeneratedAt is when this story was created
	GeneratedAt time.Time `json:"generated_at"`
}

// GeneratorConfig names the model behind each backend for reporting.
type GeneratorConfig struct {
	RemoteModel string
	LocalModel  string
}

// Generator produces stories from scenarios using one of two backends.
type Generator struct {
	remote LLM
	local  LLMSource
	config GeneratorConfig
}

// NewGenerator creates a generator. Either backend may be nil, in which case
// choosing it is a configuration error.
func NewGenerator(remote LLM, local LLMSource, config GeneratorConfig) *Generator {
	return &Generator{
		remote: remote,
		local:  local,
		config: config,
	}
}

// Generate writes a story for scenario. A non-empty docContext is prepended to
// the scenario before the backend's template is applied.
func (g *Generator) Generate(ctx context.Context, scenario string, choice ModelChoice, docContext string) (*Story, error) {
	if strings.TrimSpace(scenario) == "" {
		return nil, apperr.Errorf(apperr.KindInvalidInput, op, "scenario is required")
	}

	input := WithContext(scenario, docContext)

	var (
		llm    LLM
		prompt string
		model  string
	)
	switch choice {
	case ModelOpenAI:
		if g.remote == nil {
			return nil, apperr.Errorf(apperr.KindConfiguration, op, "remote model not configured")
		}
		llm, prompt, model = g.remote, StorytellerPrompt(input), g.config.RemoteModel
	case ModelLocal:
		if g.local == nil {
			return nil, apperr.Errorf(apperr.KindConfiguration, op, "local model not configured")
		}
		local, err := g.local(ctx)
		if err != nil {
			return nil, apperr.E(apperr.KindUpstream, op, fmt.Errorf("local model unavailable: %w", err))
		}
		llm, prompt, model = local, ChatMLPrompt(input), g.config.LocalModel
	default:
		return nil, apperr.Errorf(apperr.KindUnsupportedModel, op,
			"unsupported model choice %q, please select a valid model", choice)
	}

	text, err := llm.Generate(ctx, prompt)
	if err != nil {
		return nil, apperr.E(apperr.KindUpstream, op, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.E(apperr.KindUpstream, op, fmt.Errorf("%w: empty story", ErrLLMFailed))
	}

	return &Story{
		Text:        text,
		Choice:      choice,
		Model:       model,
		GeneratedAt: time.Now(),
	}, nil
}
