package rag

import (
	"context"
)

// ChunkRecord is one embedded chunk as stored in a vector store.
type ChunkRecord struct {
	ChunkID   string    `json:"chunk_id"`
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// ContextChunk represents a retrieved chunk with similarity score.
// Higher scores are more similar.
type ContextChunk struct {
	ChunkID string  `json:"chunk_id"`
	Index   int     `json:"index"`
	Text    string  `json:"text"`
	Score   float32 `json:"score"`
}

// VectorStore defines the interface for vector storage and similarity search.
// A store backs exactly one document index.
type VectorStore interface {
	// Insert adds embedded chunks to the store
	Insert(ctx context.Context, records []ChunkRecord) error

	// Search returns up to topK chunks ordered by descending similarity
	Search(ctx context.Context, queryVector []float32, topK int) ([]ContextChunk, error)

	// Count returns the number of stored chunks
	Count(ctx context.Context) (int, error)

	// Close releases resources. Stores scoped to one index drop their data.
	Close() error
}

// StoreFactory opens a fresh, empty store for vectors of the given dimension.
type StoreFactory func(ctx context.Context, dimension int) (VectorStore, error)

// IndexOptions provides configuration for document indexing
type IndexOptions struct {
	// BatchSize determines how many chunks to embed at once
	BatchSize int
}

// DefaultIndexOptions returns sensible defaults for indexing
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize: 32,
	}
}
