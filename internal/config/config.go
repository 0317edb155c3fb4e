// Package config loads service configuration from an optional YAML file,
// a .env file and the process environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Yates-Labs/storyteller/internal/apperr"
)

// Config holds all configuration for the storyteller service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Milvus      MilvusConfig      `yaml:"milvus"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	LogLevel    string            `yaml:"log_level"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// OpenAIConfig configures the hosted chat model and the optional embedder.
type OpenAIConfig struct {
	APIKey      string  `yaml:"-"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// OllamaConfig configures the local runtime used for local story
// generation and for the default sentence embedder.
type OllamaConfig struct {
	Host       string `yaml:"host"`
	StoryModel string `yaml:"story_model"`
}

type HuggingFaceConfig struct {
	APIToken     string `yaml:"-"`
	BaseURL      string `yaml:"base_url"`
	CaptionModel string `yaml:"caption_model"`
	SpeechModel  string `yaml:"speech_model"`
}

// RetrievalConfig configures chunking, embedding and the vector index.
type RetrievalConfig struct {
	ChunkSize          int    `yaml:"chunk_size"`
	ChunkOverlap       int    `yaml:"chunk_overlap"`
	TopK               int    `yaml:"top_k"`
	Embedder           string `yaml:"embedder"` // "ollama" or "openai"
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	VectorStore        string `yaml:"vector_store"` // "memory" or "milvus"
}

type MilvusConfig struct {
	Address string `yaml:"address"`
}

// ScoringConfig points at the model servers used by the coherence metrics.
type ScoringConfig struct {
	BartScorerURL string `yaml:"bart_scorer_url"`
	PerplexityURL string `yaml:"perplexity_url"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        "8000",
			MaxUploadMB: 20,
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-3.5-turbo",
			Temperature: 0.8,
		},
		Ollama: OllamaConfig{
			Host:       "http://127.0.0.1:11434",
			StoryModel: "young-children-storyteller",
		},
		HuggingFace: HuggingFaceConfig{
			BaseURL:      "https://api-inference.huggingface.co/models",
			CaptionModel: "Salesforce/blip-image-captioning-base",
			SpeechModel:  "espnet/kan-bayashi_ljspeech_vits",
		},
		Retrieval: RetrievalConfig{
			ChunkSize:          500,
			ChunkOverlap:       50,
			TopK:               3,
			Embedder:           "ollama",
			EmbeddingModel:     "all-minilm",
			EmbeddingDimension: 384,
			VectorStore:        "memory",
		},
		Milvus: MilvusConfig{
			Address: "localhost:19530",
		},
		Scoring: ScoringConfig{
			BartScorerURL: "http://127.0.0.1:8081",
			PerplexityURL: "http://127.0.0.1:8082",
		},
		LogLevel: "info",
	}
}

// Load reads configuration. path may be empty; a missing file is not an
// error. The result is validated.
func Load(path string) (*Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated is Load without the credential checks. Commands that do
// not talk to the hosted services use it.
func LoadUnvalidated(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, apperr.E(apperr.KindConfiguration, "read config", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, apperr.E(apperr.KindConfiguration, "parse config", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("HOST", c.Server.Host)
	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Server.MaxUploadMB = getEnvOrDefaultInt("MAX_UPLOAD_MB", c.Server.MaxUploadMB)

	c.OpenAI.APIKey = getEnvOrDefault("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnvOrDefault("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = getEnvOrDefault("OPENAI_MODEL", c.OpenAI.Model)

	c.Ollama.Host = getEnvOrDefault("OLLAMA_HOST", c.Ollama.Host)
	c.Ollama.StoryModel = getEnvOrDefault("LOCAL_STORY_MODEL", c.Ollama.StoryModel)

	c.HuggingFace.APIToken = getEnvOrDefault("HUGGINGFACEHUB_API_TOKEN", c.HuggingFace.APIToken)
	c.HuggingFace.BaseURL = getEnvOrDefault("CAPTION_BASE_URL", c.HuggingFace.BaseURL)
	c.HuggingFace.CaptionModel = getEnvOrDefault("CAPTION_MODEL", c.HuggingFace.CaptionModel)
	c.HuggingFace.SpeechModel = getEnvOrDefault("SPEECH_MODEL", c.HuggingFace.SpeechModel)

	c.Retrieval.ChunkSize = getEnvOrDefaultInt("CHUNK_SIZE", c.Retrieval.ChunkSize)
	c.Retrieval.ChunkOverlap = getEnvOrDefaultInt("CHUNK_OVERLAP", c.Retrieval.ChunkOverlap)
	c.Retrieval.TopK = getEnvOrDefaultInt("RETRIEVAL_K", c.Retrieval.TopK)
	c.Retrieval.Embedder = strings.ToLower(getEnvOrDefault("EMBEDDER", c.Retrieval.Embedder))
	c.Retrieval.EmbeddingModel = getEnvOrDefault("EMBEDDING_MODEL", c.Retrieval.EmbeddingModel)
	c.Retrieval.EmbeddingDimension = getEnvOrDefaultInt("EMBEDDING_DIMENSION", c.Retrieval.EmbeddingDimension)
	c.Retrieval.VectorStore = strings.ToLower(getEnvOrDefault("VECTOR_STORE", c.Retrieval.VectorStore))

	c.Milvus.Address = getEnvOrDefault("MILVUS_ADDRESS", c.Milvus.Address)

	c.Scoring.BartScorerURL = getEnvOrDefault("BART_SCORER_URL", c.Scoring.BartScorerURL)
	c.Scoring.PerplexityURL = getEnvOrDefault("PERPLEXITY_URL", c.Scoring.PerplexityURL)

	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
}

// Validate checks required credentials and value ranges.
func (c *Config) Validate() error {
	if c.HuggingFace.APIToken == "" {
		return &ConfigError{Field: "HUGGINGFACEHUB_API_TOKEN", Message: "Hugging Face API token is required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "OpenAI API key is required"}
	}
	return c.validateRanges()
}

func (c *Config) validateRanges() error {
	r := c.Retrieval
	if r.ChunkSize <= 0 {
		return &ConfigError{Field: "CHUNK_SIZE", Message: "must be positive"}
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return &ConfigError{Field: "CHUNK_OVERLAP", Message: "must be in [0, CHUNK_SIZE)"}
	}
	if r.TopK <= 0 {
		return &ConfigError{Field: "RETRIEVAL_K", Message: "must be positive"}
	}
	if r.Embedder != "ollama" && r.Embedder != "openai" {
		return &ConfigError{Field: "EMBEDDER", Message: fmt.Sprintf("unknown embedder %q", r.Embedder)}
	}
	if r.VectorStore != "memory" && r.VectorStore != "milvus" {
		return &ConfigError{Field: "VECTOR_STORE", Message: fmt.Sprintf("unknown vector store %q", r.VectorStore)}
	}
	if r.EmbeddingDimension <= 0 {
		return &ConfigError{Field: "EMBEDDING_DIMENSION", Message: "must be positive"}
	}
	if c.Server.MaxUploadMB <= 0 {
		return &ConfigError{Field: "MAX_UPLOAD_MB", Message: "must be positive"}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ConfigError represents a configuration error. It unwraps to a
// configuration-kind apperr so it maps to the right status.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ConfigError) Unwrap() error {
	return apperr.ErrConfiguration
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
