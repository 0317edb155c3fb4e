package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyteller/internal/evaluate"
	"github.com/Yates-Labs/storyteller/internal/extract"
	"github.com/Yates-Labs/storyteller/internal/orchestrator"
)

var (
	evalReference   string
	evalNoCoherence bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file|-]",
	Short: "Score an existing story",
	Long: `Score a story read from a file or standard input.

Sentiment and readability are always computed. Coherence needs the scoring
servers (BART_SCORER_URL, PERPLEXITY_URL). A --reference text or PDF enables
ROUGE.

Examples:
  storyteller evaluate story.txt
  cat story.txt | storyteller evaluate -
  storyteller evaluate story.txt --reference farm.pdf --no-coherence`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evalReference, "reference", "", "Reference text or PDF for ROUGE")
	evaluateCmd.Flags().BoolVar(&evalNoCoherence, "no-coherence", false, "Skip the coherence scorers")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	story, err := readStory(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	opts := evaluate.Options{Coherence: !evalNoCoherence}
	if evalReference != "" {
		if opts.Reference, err = readReference(evalReference); err != nil {
			return err
		}
	}

	eval, err := orchestrator.NewEvaluatorFromConfig(cfg).Evaluate(cmd.Context(), story, opts)
	if err != nil {
		return err
	}

	printEvaluation(cmd.OutOrStdout(), eval)
	return nil
}

func readStory(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read story: %w", err)
	}

	story := strings.TrimSpace(string(data))
	if story == "" {
		return "", errors.New("story is empty")
	}
	return story, nil
}

// readReference loads a plain-text or PDF reference.
func readReference(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read reference: %w", err)
	}
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return extract.ExtractBytes(data)
	}
	return string(data), nil
}
