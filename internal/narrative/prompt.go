package narrative

import (
	"strings"
)

// WithContext prepends retrieved document context to the scenario.
func WithContext(scenario, context string) string {
	if strings.TrimSpace(context) == "" {
		return scenario
	}
	return context + "\n\n" + scenario
}

// StorytellerPrompt is the instruction template for the hosted chat model.
func StorytellerPrompt(scenario string) string {
	var b strings.Builder

	b.WriteString("You are an expert kids' storyteller who can turn simple descriptions into magical, engaging tales.\n")
	b.WriteString("Create a captivating story with characters, dialogue, and a clear beginning, middle, and end.\n")
	b.WriteString("Use very simple language, short sentences, and vocabulary appropriate for 3rd-grade readers.\n")
	b.WriteString("Make sure the story is easy to understand and fun.\n")
	b.WriteString("Add emotions, adventures, and a moral lesson at the end.\n\n")
	b.WriteString("IMAGE DESCRIPTION: ")
	b.WriteString(scenario)
	b.WriteString("\n")
	b.WriteString("STORY:\n")

	return b.String()
}

// ChatMLPrompt wraps the scenario in the ChatML turns the local model was
// tuned on, ending with an open assistant turn.
func ChatMLPrompt(scenario string) string {
	var b strings.Builder

	b.WriteString("<|im_start|>system\n")
	b.WriteString("You are a Helpful Assistant who writes educational stories for young children using very simple language, short sentences, ")
	b.WriteString("and vocabulary appropriate for 3rd-grade readers. Make sure the story is very easy to understand and fun.\n")
	b.WriteString("<|im_end|>\n")
	b.WriteString("<|im_start|>user\n")
	b.WriteString(scenario)
	b.WriteString("\n")
	b.WriteString("<|im_end|>\n")
	b.WriteString("<|im_start|>assistant\n")

	return b.String()
}
