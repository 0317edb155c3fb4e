package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyteller/internal/speech"
)

var speakOut string

var speakCmd = &cobra.Command{
	Use:   "speak [file|-]",
	Short: "Read a story aloud into an audio file",
	Long: `Synthesize speech for a story read from a file or standard input.

The hosted text-to-speech model returns FLAC audio, which is written to
--out.

Required environment variables:
  HUGGINGFACEHUB_API_TOKEN - token for the hosted speech model

Examples:
  storyteller speak story.txt
  storyteller story --scenario "a dog" | storyteller speak - --out dog.flac`,
	Args: cobra.ExactArgs(1),
	RunE: runSpeak,
}

func init() {
	rootCmd.AddCommand(speakCmd)
	speakCmd.Flags().StringVarP(&speakOut, "out", "o", "story.flac", "Audio file to write")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	story, err := readStory(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	client, err := speech.NewClient(cfg.HuggingFace.BaseURL, cfg.HuggingFace.SpeechModel, cfg.HuggingFace.APIToken)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, mutedStyle.Render("→ Synthesizing speech..."))
	audio, err := client.Synthesize(cmd.Context(), story)
	if err != nil {
		return err
	}

	if err := os.WriteFile(speakOut, audio.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Audio saved as %s (%s, %d bytes)", speakOut, audio.ContentType, len(audio.Data))))
	return nil
}
