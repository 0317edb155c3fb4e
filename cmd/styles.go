package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/Yates-Labs/storyteller/internal/evaluate"
)

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink
	captionColor = lipgloss.Color("#8BE9FD") // Cyan
	storyColor   = lipgloss.Color("#E9E9F4") // Light purple/white
	labelColor   = lipgloss.Color("#BD93F9") // Purple
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	errorColor   = lipgloss.Color("#FF5555") // Red
	successColor = lipgloss.Color("#50FA7B") // Green
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	captionStyle = lipgloss.NewStyle().Foreground(captionColor).Italic(true)
	storyStyle   = lipgloss.NewStyle().Foreground(storyColor).Width(80)
	labelStyle   = lipgloss.NewStyle().Foreground(labelColor).Width(24)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
)

func printSection(w io.Writer, title, body string, style lipgloss.Style) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(title))
	fmt.Fprintln(w, style.Render(body))
}

func printMetric(w io.Writer, label string, value float64) {
	fmt.Fprintf(w, "%s %.4f\n", labelStyle.Render(label), value)
}

// printEvaluation renders whichever metrics are present.
func printEvaluation(w io.Writer, eval *evaluate.Evaluation) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Evaluation:"))

	if s := eval.Sentiment; s != nil {
		printMetric(w, "sentiment compound", s.Compound)
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  pos %.3f  neu %.3f  neg %.3f", s.Pos, s.Neu, s.Neg)))
	}
	if r := eval.Readability; r != nil {
		printMetric(w, "flesch reading ease", r.FleschReadingEase)
		printMetric(w, "flesch-kincaid grade", r.FleschKincaidGrade)
	}
	if c := eval.Coherence; c != nil {
		printMetric(w, "bart score", c.BartScore)
		printMetric(w, "perplexity", c.PerplexityScore)
	}
	if r := eval.Rouge; r != nil {
		printMetric(w, "rouge1", r.Rouge1)
		printMetric(w, "rouge2", r.Rouge2)
		printMetric(w, "rougeL", r.RougeL)
	}
}
