package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyteller/internal/caption"
)

var captionCmd = &cobra.Command{
	Use:   "caption [image]",
	Short: "Describe an image in one sentence",
	Long: `Caption an image with the hosted image-to-text model.

Required environment variables:
  HUGGINGFACEHUB_API_TOKEN - token for the hosted captioning model

Examples:
  storyteller caption dog.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runCaption,
}

func init() {
	rootCmd.AddCommand(captionCmd)
}

func runCaption(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	client, err := caption.NewClient(cfg.HuggingFace.BaseURL, cfg.HuggingFace.CaptionModel, cfg.HuggingFace.APIToken)
	if err != nil {
		return err
	}

	res := caption.CaptionFile(cmd.Context(), client, args[0])
	if !res.OK() {
		return res.Err
	}

	printSection(cmd.OutOrStdout(), "Caption:", res.Text, captionStyle)
	return nil
}
