package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyteller/internal/evaluate"
	"github.com/Yates-Labs/storyteller/internal/narrative"
	"github.com/Yates-Labs/storyteller/internal/orchestrator"
)

var (
	storyScenario string
	storyImage    string
	storyPDF      string
	storyModel    string
)

var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Write a kids' story from a scenario or an image",
	Long: `Write a story and evaluate it.

With --scenario the story is scored for sentiment and readability. With
--image the image is captioned first, an optional --pdf grounds the story and
serves as the ROUGE reference, and coherence is scored as well.

Examples:
  storyteller story --scenario "a dragon who is afraid of the dark"
  storyteller story --image dog.jpg --model local
  storyteller story --image dog.jpg --pdf farm.pdf`,
	Args: cobra.NoArgs,
	RunE: runStory,
}

func init() {
	rootCmd.AddCommand(storyCmd)
	storyCmd.Flags().StringVar(&storyScenario, "scenario", "", "Scenario to write about")
	storyCmd.Flags().StringVar(&storyImage, "image", "", "Image to caption and write about")
	storyCmd.Flags().StringVar(&storyPDF, "pdf", "", "PDF used as context and ROUGE reference (requires --image)")
	storyCmd.Flags().StringVar(&storyModel, "model", narrative.ChoiceOpenAI, `Model choice: "openai", "local" or the full UI label`)
}

func validateStoryFlags() error {
	switch {
	case storyScenario == "" && storyImage == "":
		return errors.New("one of --scenario or --image is required")
	case storyScenario != "" && storyImage != "":
		return errors.New("--scenario and --image are mutually exclusive")
	case storyPDF != "" && storyImage == "":
		return errors.New("--pdf requires --image")
	}
	return nil
}

func runStory(cmd *cobra.Command, args []string) error {
	if err := validateStoryFlags(); err != nil {
		return err
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	pipeline, err := orchestrator.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if storyScenario != "" {
		fmt.Fprintln(out, mutedStyle.Render("→ Generating story..."))
		res, err := pipeline.GenerateStory(ctx, storyScenario, storyModel)
		if err != nil {
			return err
		}
		printSection(out, "Story:", res.Story, storyStyle)
		printEvaluation(out, &evaluate.Evaluation{
			Story:       res.Story,
			Sentiment:   &res.Sentiment,
			Readability: &res.Readability,
		})
		return nil
	}

	req := orchestrator.ImageStoryRequest{ModelChoice: storyModel}
	if req.Image, err = os.ReadFile(storyImage); err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if storyPDF != "" {
		if req.PDF, err = os.ReadFile(storyPDF); err != nil {
			return fmt.Errorf("failed to read pdf: %w", err)
		}
	}

	fmt.Fprintln(out, mutedStyle.Render("→ Captioning image and generating story..."))
	res, err := pipeline.GenerateStoryFromImage(ctx, req)
	if err != nil {
		return err
	}

	printSection(out, "Caption:", res.Caption, captionStyle)
	printSection(out, "Story:", res.Story, storyStyle)
	printEvaluation(out, &evaluate.Evaluation{
		Story:       res.Story,
		Sentiment:   &res.Sentiment,
		Readability: &res.Readability,
		Coherence:   &res.Coherence,
		Rouge:       res.Rouge,
	})
	fmt.Fprintln(out)
	fmt.Fprintln(out, successStyle.Render("✓ Done"))
	return nil
}
