package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Yates-Labs/storyteller/internal/apperr"
)

func newTestGenerator(remote, local *MockLLM) *Generator {
	var source LLMSource
	if local != nil {
		source = local.Source()
	}
	var r LLM
	if remote != nil {
		r = remote
	}
	return NewGenerator(r, source, GeneratorConfig{
		RemoteModel: "gpt-3.5-turbo",
		LocalModel:  "young-children-storyteller",
	})
}

func TestParseModelChoice(t *testing.T) {
	tests := []struct {
		input string
		want  ModelChoice
		ok    bool
	}{
		{"OpenAI (GPT-3.5)", ModelOpenAI, true},
		{"openai", ModelOpenAI, true},
		{"Hugging Face (Alternative)", ModelLocal, true},
		{" local ", ModelLocal, true},
		{"Claude", ModelUnknown, false},
		{"", ModelUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseModelChoice(tt.input)
			if tt.ok {
				if err != nil || got != tt.want {
					t.Errorf("ParseModelChoice(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
				}
				return
			}
			if !errors.Is(err, apperr.ErrUnsupportedModel) {
				t.Errorf("expected unsupported model error, got %v", err)
			}
		})
	}
}

func TestGenerator_Generate_OpenAI(t *testing.T) {
	remote := NewMockLLM("\n  Once upon a time, a dog found a bone. The end.  \n")
	gen := newTestGenerator(remote, nil)

	story, err := gen.Generate(context.Background(), "a dog", ModelOpenAI, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if story.Text != "Once upon a time, a dog found a bone. The end." {
		t.Errorf("expected trimmed text, got %q", story.Text)
	}
	if story.Model != "gpt-3.5-turbo" {
		t.Errorf("Model = %q", story.Model)
	}
	if story.Choice != ModelOpenAI {
		t.Errorf("Choice = %v", story.Choice)
	}
	if story.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}
	if !strings.Contains(remote.LastPrompt, "IMAGE DESCRIPTION: a dog\n") {
		t.Errorf("prompt missing scenario:\n%s", remote.LastPrompt)
	}
	if !strings.HasSuffix(remote.LastPrompt, "STORY:\n") {
		t.Error("prompt should end with the STORY marker")
	}
}

func TestGenerator_Generate_PrependsContext(t *testing.T) {
	remote := NewMockLLM("story")
	gen := newTestGenerator(remote, nil)

	_, err := gen.Generate(context.Background(), "a dog", ModelOpenAI, "Dogs love bones.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(remote.LastPrompt, "IMAGE DESCRIPTION: Dogs love bones.\n\na dog\n") {
		t.Errorf("context not prepended to scenario:\n%s", remote.LastPrompt)
	}
}

func TestGenerator_Generate_Local(t *testing.T) {
	local := NewMockLLM("A little story.")
	gen := newTestGenerator(nil, local)

	story, err := gen.Generate(context.Background(), "a cat on a mat", ModelLocal, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if story.Model != "young-children-storyteller" {
		t.Errorf("Model = %q", story.Model)
	}
	if !strings.HasPrefix(local.LastPrompt, "<|im_start|>system\n") {
		t.Errorf("expected ChatML prompt, got:\n%s", local.LastPrompt)
	}
	if !strings.Contains(local.LastPrompt, "<|im_start|>user\na cat on a mat\n<|im_end|>\n") {
		t.Errorf("scenario not in user turn:\n%s", local.LastPrompt)
	}
	if !strings.HasSuffix(local.LastPrompt, "<|im_start|>assistant\n") {
		t.Error("prompt should end with an open assistant turn")
	}
}

func TestGenerator_Generate_Errors(t *testing.T) {
	llmErr := errors.New("rate limited")

	tests := []struct {
		name     string
		gen      *Generator
		scenario string
		choice   ModelChoice
		wantErr  *apperr.Error
	}{
		{
			name:     "empty scenario",
			gen:      newTestGenerator(NewMockLLM("x"), nil),
			scenario: "  ",
			choice:   ModelOpenAI,
			wantErr:  apperr.ErrInvalidInput,
		},
		{
			name:     "unknown choice",
			gen:      newTestGenerator(NewMockLLM("x"), nil),
			scenario: "a dog",
			choice:   ModelUnknown,
			wantErr:  apperr.ErrUnsupportedModel,
		},
		{
			name:     "remote not configured",
			gen:      newTestGenerator(nil, nil),
			scenario: "a dog",
			choice:   ModelOpenAI,
			wantErr:  apperr.ErrConfiguration,
		},
		{
			name:     "local not configured",
			gen:      newTestGenerator(nil, nil),
			scenario: "a dog",
			choice:   ModelLocal,
			wantErr:  apperr.ErrConfiguration,
		},
		{
			name:     "llm failure",
			gen:      newTestGenerator(NewMockLLMWithError(llmErr), nil),
			scenario: "a dog",
			choice:   ModelOpenAI,
			wantErr:  apperr.ErrUpstream,
		},
		{
			name:     "blank output",
			gen:      newTestGenerator(NewMockLLM("   "), nil),
			scenario: "a dog",
			choice:   ModelOpenAI,
			wantErr:  apperr.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			story, err := tt.gen.Generate(context.Background(), tt.scenario, tt.choice, "")
			if err == nil {
				t.Fatalf("expected error, got story %+v", story)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGenerator_Generate_LocalSourceError(t *testing.T) {
	initErr := errors.New("ollama unreachable")
	gen := NewGenerator(nil, func(context.Context) (LLM, error) {
		return nil, initErr
	}, GeneratorConfig{LocalModel: "m"})

	_, err := gen.Generate(context.Background(), "a dog", ModelLocal, "")
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
	if !errors.Is(err, initErr) {
		t.Errorf("expected wrapped init error, got %v", err)
	}
}

func TestMockLLM_DefaultResponse(t *testing.T) {
	mock := &MockLLM{}
	text, err := mock.Generate(context.Background(), StorytellerPrompt("a red kite"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "a red kite") {
		t.Errorf("default response should mention the scenario, got %q", text)
	}
	if mock.Calls != 1 {
		t.Errorf("Calls = %d", mock.Calls)
	}
}
