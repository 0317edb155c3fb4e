package rag

import (
	"context"
	"fmt"
	"strings"
)

// Retriever provides semantic retrieval over a document index.
type Retriever struct {
	embedder Embedder
}

// NewRetriever creates a new Retriever instance. The embedder must be the one
// the index was built with.
func NewRetriever(embedder Embedder) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	return &Retriever{embedder: embedder}, nil
}

// RetrieveChunks returns up to k chunks most similar to query, best first.
// A nil or empty index yields no chunks.
func (r *Retriever) RetrieveChunks(ctx context.Context, query string, index *Index, k int) ([]ContextChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if index == nil || index.Chunks == 0 || strings.TrimSpace(query) == "" {
		return []ContextChunk{}, nil
	}

	embeddingRecords, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddingRecords) == 0 {
		return nil, fmt.Errorf("no embedding generated for query")
	}

	chunks, err := index.store.Search(ctx, embeddingRecords[0].Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return chunks, nil
}

// Retrieve returns the text of the top k chunks joined by single spaces.
func (r *Retriever) Retrieve(ctx context.Context, query string, index *Index, k int) (string, error) {
	chunks, err := r.RetrieveChunks(ctx, query, index, k)
	if err != nil {
		return "", err
	}
	return FormatChunks(chunks), nil
}

// FormatChunks joins chunk texts with single spaces, preserving order.
func FormatChunks(chunks []ContextChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, " ")
}
