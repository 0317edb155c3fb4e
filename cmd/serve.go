package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/storyteller/internal/logging"
	"github.com/Yates-Labs/storyteller/internal/orchestrator"
	"github.com/Yates-Labs/storyteller/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the storyteller HTTP API.

Required environment variables:
  HUGGINGFACEHUB_API_TOKEN - token for the hosted captioning model
  OPENAI_API_KEY           - OpenAI API key for story generation

Examples:
  storyteller serve
  storyteller serve --addr 0.0.0.0:8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default HOST:PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	pipeline, err := orchestrator.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(pipeline, logger, server.Options{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	})
	return srv.ListenAndServe(ctx, addr)
}
