package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyteller/internal/config"
	"github.com/Yates-Labs/storyteller/internal/logging"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "storyteller",
	Short: "Storyteller - AI kids' story generator",
	Long: `Storyteller turns images and short scenarios into children's stories.

It captions images with a hosted vision model, writes stories with OpenAI or a
local model, grounds them in an optional PDF, and scores the result for
sentiment, readability, coherence and overlap with the document.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "storyteller.yaml", "Path to an optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and installs the default logger. Commands
// that only need part of the stack skip credential validation.
func loadConfig(validate bool) (*config.Config, error) {
	load := config.LoadUnvalidated
	if validate {
		load = config.Load
	}
	cfg, err := load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.SetDefault(cfg.LogLevel)
	return cfg, nil
}
