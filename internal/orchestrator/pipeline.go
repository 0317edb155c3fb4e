// Package orchestrator sequences extraction, indexing, captioning, story
// generation and evaluation for one request.
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/Yates-Labs/storyteller/internal/apperr"
	"github.com/Yates-Labs/storyteller/internal/caption"
	"github.com/Yates-Labs/storyteller/internal/evaluate"
	"github.com/Yates-Labs/storyteller/internal/extract"
	"github.com/Yates-Labs/storyteller/internal/logging"
	"github.com/Yates-Labs/storyteller/internal/narrative"
	"github.com/Yates-Labs/storyteller/internal/rag"
	"github.com/Yates-Labs/storyteller/internal/speech"
)

const component = "Story Pipeline"

// Config holds the pipeline settings.
type Config struct {
	// RetrievalK is the number of document chunks used as story context
	RetrievalK int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{RetrievalK: 3}
}

// Dependencies are the components the pipeline calls.
type Dependencies struct {
	Captioner caption.Captioner
	Generator *narrative.Generator
	Indexer   *rag.Indexer
	Retriever *rag.Retriever
	Evaluator *evaluate.Evaluator
	// Speaker is optional; without it TextToSpeech is a configuration error
	Speaker speech.Synthesizer
}

// Pipeline runs one request at a time through the stages. It holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	captioner caption.Captioner
	generator *narrative.Generator
	indexer   *rag.Indexer
	retriever *rag.Retriever
	evaluator *evaluate.Evaluator
	speaker   speech.Synthesizer
	config    Config
}

// New creates a pipeline.
func New(deps Dependencies, config Config) (*Pipeline, error) {
	if deps.Captioner == nil {
		return nil, fmt.Errorf("captioner cannot be nil")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if deps.Indexer == nil || deps.Retriever == nil {
		return nil, fmt.Errorf("indexer and retriever are required")
	}
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if config.RetrievalK <= 0 {
		config.RetrievalK = DefaultConfig().RetrievalK
	}

	return &Pipeline{
		captioner: deps.Captioner,
		generator: deps.Generator,
		indexer:   deps.Indexer,
		retriever: deps.Retriever,
		evaluator: deps.Evaluator,
		speaker:   deps.Speaker,
		config:    config,
	}, nil
}

// ImageUpload is the result of captioning an uploaded image.
type ImageUpload struct {
	Caption string `json:"caption"`
	// Image is the upload echoed back as a data URI
	Image string `json:"image"`
}

// DocumentUpload is the result of indexing an uploaded PDF.
type DocumentUpload struct {
	Message         string `json:"message"`
	VectorStoreInfo string `json:"vector_store_info"`
}

// StoryResult is a story with its default metrics.
type StoryResult struct {
	Story       string                     `json:"story"`
	Sentiment   evaluate.SentimentScores   `json:"sentiment"`
	Readability evaluate.ReadabilityScores `json:"readability"`
}

// ImageStoryRequest carries the uploads of the combined flow. PDF is
// optional.
type ImageStoryRequest struct {
	Image       []byte
	ModelChoice string
	PDF         []byte
}

// ImageStoryResult is the combined flow's response record.
type ImageStoryResult struct {
	Caption     string                     `json:"caption"`
	Story       string                     `json:"story"`
	Sentiment   evaluate.SentimentScores   `json:"sentiment"`
	Readability evaluate.ReadabilityScores `json:"readability"`
	Coherence   evaluate.CoherenceScores   `json:"coherence"`
	Rouge       *evaluate.RougeScores      `json:"rouge_scores,omitempty"`
}

func (p *Pipeline) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx).With("component", component)
}

// UploadImage captions image. contentType labels the returned data URI and
// is sniffed from the bytes when empty.
func (p *Pipeline) UploadImage(ctx context.Context, image []byte, contentType string) (*ImageUpload, error) {
	log := p.log(ctx)

	log.Info("captioning image", "bytes", len(image))
	res := p.captioner.Caption(ctx, image)
	if !res.OK() {
		return nil, res.Err
	}
	log.Info("caption ready", "caption", res.Text)

	if contentType == "" {
		format, err := caption.DetectFormat(image)
		if err != nil {
			return nil, err
		}
		contentType = format
	}

	return &ImageUpload{
		Caption: res.Text,
		Image:   "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image),
	}, nil
}

// UploadDocument extracts the PDF and builds a vector index from it. The
// index only lives for this call.
func (p *Pipeline) UploadDocument(ctx context.Context, pdf []byte) (*DocumentUpload, error) {
	_, index, err := p.indexDocument(ctx, pdf)
	if err != nil {
		return nil, err
	}
	p.closeIndex(ctx, index)

	return &DocumentUpload{
		Message:         "PDF processed successfully.",
		VectorStoreInfo: "Vector store built.",
	}, nil
}

// GenerateStory writes a story for a typed scenario and scores its
// sentiment and readability.
func (p *Pipeline) GenerateStory(ctx context.Context, scenario, modelChoice string) (*StoryResult, error) {
	log := p.log(ctx)

	choice, err := narrative.ParseModelChoice(modelChoice)
	if err != nil {
		return nil, err
	}

	log.Info("Stage 1: generating story", "model_choice", choice.String())
	story, err := p.generator.Generate(ctx, scenario, choice, "")
	if err != nil {
		return nil, err
	}
	log.Info("story generated", "model", story.Model, "characters", len(story.Text))

	log.Info("Stage 2: evaluating story")
	eval, err := p.evaluator.Evaluate(ctx, story.Text, evaluate.Options{})
	if err != nil {
		return nil, err
	}

	return &StoryResult{
		Story:       story.Text,
		Sentiment:   *eval.Sentiment,
		Readability: *eval.Readability,
	}, nil
}

// GenerateStoryFromImage runs the combined flow: optional document
// indexing, captioning, story generation with retrieved context, and the
// full evaluation. The PDF text is the ROUGE reference.
func (p *Pipeline) GenerateStoryFromImage(ctx context.Context, req ImageStoryRequest) (*ImageStoryResult, error) {
	log := p.log(ctx)

	choice, err := narrative.ParseModelChoice(req.ModelChoice)
	if err != nil {
		return nil, err
	}

	var (
		reference string
		index     *rag.Index
	)
	if len(req.PDF) > 0 {
		log.Info("Stage 1: indexing document", "bytes", len(req.PDF))
		reference, index, err = p.indexDocument(ctx, req.PDF)
		if err != nil {
			return nil, err
		}
		defer p.closeIndex(ctx, index)
	}

	log.Info("Stage 2: captioning image", "bytes", len(req.Image))
	res := p.captioner.Caption(ctx, req.Image)
	if !res.OK() {
		return nil, res.Err
	}
	log.Info("caption ready", "caption", res.Text)

	var docContext string
	if index != nil {
		chunks, err := p.retriever.RetrieveChunks(ctx, res.Text, index, p.config.RetrievalK)
		if err != nil {
			return nil, apperr.E(apperr.KindUpstream, "retrieve context", err)
		}
		docContext = rag.FormatChunks(chunks)
		log.Info("retrieved context", "chunks", len(chunks))
	}

	log.Info("Stage 3: generating story", "model_choice", choice.String())
	story, err := p.generator.Generate(ctx, res.Text, choice, docContext)
	if err != nil {
		return nil, err
	}
	log.Info("story generated", "model", story.Model, "characters", len(story.Text))

	log.Info("Stage 4: evaluating story", "rouge", reference != "")
	eval, err := p.evaluator.Evaluate(ctx, story.Text, evaluate.Options{
		Coherence: true,
		Reference: reference,
	})
	if err != nil {
		return nil, err
	}

	return &ImageStoryResult{
		Caption:     res.Text,
		Story:       story.Text,
		Sentiment:   *eval.Sentiment,
		Readability: *eval.Readability,
		Coherence:   *eval.Coherence,
		Rouge:       eval.Rouge,
	}, nil
}

// EvaluateStory scores the coherence of a story supplied by the caller.
func (p *Pipeline) EvaluateStory(ctx context.Context, story string) (*evaluate.CoherenceScores, error) {
	p.log(ctx).Info("evaluating coherence", "characters", len(story))

	scores, err := p.evaluator.Coherence(ctx, story)
	if err != nil {
		return nil, err
	}
	return &scores, nil
}

// TextToSpeech reads story aloud.
func (p *Pipeline) TextToSpeech(ctx context.Context, story string) (*speech.Audio, error) {
	if p.speaker == nil {
		return nil, apperr.Errorf(apperr.KindConfiguration, "synthesize speech", "speech model not configured")
	}

	log := p.log(ctx)
	log.Info("synthesizing speech", "characters", len(story))
	audio, err := p.speaker.Synthesize(ctx, story)
	if err != nil {
		return nil, err
	}
	log.Info("speech ready", "bytes", len(audio.Data), "content_type", audio.ContentType)
	return audio, nil
}

func (p *Pipeline) indexDocument(ctx context.Context, pdf []byte) (string, *rag.Index, error) {
	log := p.log(ctx)

	text, err := extract.ExtractBytes(pdf)
	if err != nil {
		return "", nil, err
	}
	log.Info("extracted document text", "characters", len(text))

	index, err := p.indexer.BuildIndex(ctx, text)
	if err != nil {
		return "", nil, apperr.E(apperr.KindUpstream, "build index", err)
	}
	log.Info("built document index", "index", index.ID, "chunks", index.Chunks)

	return text, index, nil
}

func (p *Pipeline) closeIndex(ctx context.Context, index *rag.Index) {
	if err := index.Close(); err != nil {
		p.log(ctx).Warn("failed to close document index", "index", index.ID, "error", err)
	}
}
