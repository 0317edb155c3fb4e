// Package server exposes the story pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Yates-Labs/storyteller/internal/evaluate"
	"github.com/Yates-Labs/storyteller/internal/orchestrator"
	"github.com/Yates-Labs/storyteller/internal/speech"
)

// Storyteller is the pipeline the handlers call.
type Storyteller interface {
	UploadImage(ctx context.Context, image []byte, contentType string) (*orchestrator.ImageUpload, error)
	UploadDocument(ctx context.Context, pdf []byte) (*orchestrator.DocumentUpload, error)
	GenerateStory(ctx context.Context, scenario, modelChoice string) (*orchestrator.StoryResult, error)
	GenerateStoryFromImage(ctx context.Context, req orchestrator.ImageStoryRequest) (*orchestrator.ImageStoryResult, error)
	EvaluateStory(ctx context.Context, story string) (*evaluate.CoherenceScores, error)
	TextToSpeech(ctx context.Context, story string) (*speech.Audio, error)
}

var _ Storyteller = (*orchestrator.Pipeline)(nil)

// Options configures the HTTP layer.
type Options struct {
	// MaxUploadBytes caps every request body
	MaxUploadBytes int64
}

// DefaultOptions returns a 20 MB upload limit.
func DefaultOptions() Options {
	return Options{MaxUploadBytes: 20 << 20}
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	pipeline Storyteller
	logger   *slog.Logger
	opts     Options
}

// New creates a server.
func New(pipeline Storyteller, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultOptions().MaxUploadBytes
	}
	return &Server{
		pipeline: pipeline,
		logger:   logger,
		opts:     opts,
	}
}

// Handler returns the routed handler wrapped in the logging and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.rootHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/hello", s.helloHandler).Methods(http.MethodGet)
	api.HandleFunc("/upload-image", s.uploadImageHandler).Methods(http.MethodPost)
	api.HandleFunc("/upload-pdf", s.uploadPDFHandler).Methods(http.MethodPost)
	api.HandleFunc("/generate-story", s.generateStoryHandler).Methods(http.MethodPost)
	api.HandleFunc("/generate-story-from-image", s.generateStoryFromImageHandler).Methods(http.MethodPost)
	api.HandleFunc("/evaluate-story", s.evaluateStoryHandler).Methods(http.MethodPost)
	api.HandleFunc("/text-to-speech", s.textToSpeechHandler).Methods(http.MethodPost)

	// Paths used by the bundled web frontend
	api.HandleFunc("/image-to-text", s.imageToTextHandler).Methods(http.MethodPost)
	api.HandleFunc("/story-generator", s.storyGeneratorHandler).Methods(http.MethodPost)

	// Preflight requests never match a POST route, so CORS wraps the router.
	return s.loggingMiddleware(corsMiddleware(r))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
