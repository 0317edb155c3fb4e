package orchestrator

import (
	"github.com/Yates-Labs/storyteller/internal/apperr"
	"github.com/Yates-Labs/storyteller/internal/caption"
	"github.com/Yates-Labs/storyteller/internal/config"
	"github.com/Yates-Labs/storyteller/internal/evaluate"
	"github.com/Yates-Labs/storyteller/internal/narrative"
	"github.com/Yates-Labs/storyteller/internal/rag"
	"github.com/Yates-Labs/storyteller/internal/speech"
)

const buildOp = "build pipeline"

// NewFromConfig wires the production clients described by cfg. No network
// calls are made; the local story model is verified on first use.
func NewFromConfig(cfg *config.Config) (*Pipeline, error) {
	captioner, err := caption.NewClient(cfg.HuggingFace.BaseURL, cfg.HuggingFace.CaptionModel, cfg.HuggingFace.APIToken)
	if err != nil {
		return nil, err
	}

	speaker, err := speech.NewClient(cfg.HuggingFace.BaseURL, cfg.HuggingFace.SpeechModel, cfg.HuggingFace.APIToken)
	if err != nil {
		return nil, err
	}

	remoteConfig := narrative.DefaultLLMConfig()
	remoteConfig.Model = cfg.OpenAI.Model
	remoteConfig.Temperature = cfg.OpenAI.Temperature
	remoteConfig.APIKey = cfg.OpenAI.APIKey
	remoteConfig.BaseURL = cfg.OpenAI.BaseURL
	remote, err := narrative.NewOpenAILLM(remoteConfig)
	if err != nil {
		return nil, apperr.E(apperr.KindConfiguration, buildOp, err)
	}

	localConfig := narrative.DefaultLocalLLMConfig()
	localConfig.Model = cfg.Ollama.StoryModel
	local := narrative.NewLocalResource(cfg.Ollama.Host, localConfig)

	generator := narrative.NewGenerator(remote, local.Get, narrative.GeneratorConfig{
		RemoteModel: remoteConfig.Model,
		LocalModel:  localConfig.Model,
	})

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, apperr.E(apperr.KindConfiguration, buildOp, err)
	}

	chunker, err := rag.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, apperr.E(apperr.KindConfiguration, buildOp, err)
	}

	indexer, err := rag.NewIndexer(chunker, embedder, newStoreFactory(cfg), rag.DefaultIndexOptions())
	if err != nil {
		return nil, apperr.E(apperr.KindConfiguration, buildOp, err)
	}

	retriever, err := rag.NewRetriever(embedder)
	if err != nil {
		return nil, apperr.E(apperr.KindConfiguration, buildOp, err)
	}

	return New(Dependencies{
		Captioner: captioner,
		Generator: generator,
		Indexer:   indexer,
		Retriever: retriever,
		Evaluator: NewEvaluatorFromConfig(cfg),
		Speaker:   speaker,
	}, Config{RetrievalK: cfg.Retrieval.TopK})
}

// NewEvaluatorFromConfig builds the story evaluator. Coherence is only
// available when both scoring servers are configured.
func NewEvaluatorFromConfig(cfg *config.Config) *evaluate.Evaluator {
	var coherence *evaluate.Coherence
	if cfg.Scoring.BartScorerURL != "" && cfg.Scoring.PerplexityURL != "" {
		coherence = evaluate.NewCoherence(
			evaluate.NewReconstructionClient(cfg.Scoring.BartScorerURL),
			evaluate.NewTGIClient(cfg.Scoring.PerplexityURL),
			evaluate.DefaultPerplexityWindow(),
		)
	}
	return evaluate.NewEvaluator(coherence)
}

func newEmbedder(cfg *config.Config) (rag.Embedder, error) {
	r := cfg.Retrieval
	if r.Embedder == "openai" {
		return rag.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, r.EmbeddingModel, r.EmbeddingDimension)
	}
	return rag.NewOllamaEmbedder(cfg.Ollama.Host, r.EmbeddingModel, r.EmbeddingDimension)
}

func newStoreFactory(cfg *config.Config) rag.StoreFactory {
	if cfg.Retrieval.VectorStore == "milvus" {
		return rag.MilvusStoreFactory(rag.DefaultMilvusConfig(cfg.Milvus.Address))
	}
	return rag.MemoryStoreFactory
}
