package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Index is a searchable set of chunks derived from one document.
// Closing the index releases its store.
type Index struct {
	ID     string
	Model  string
	Chunks int
	store  VectorStore
}

// Store returns the vector store backing the index.
func (ix *Index) Store() VectorStore {
	return ix.store
}

// Close releases the underlying store.
func (ix *Index) Close() error {
	if ix == nil || ix.store == nil {
		return nil
	}
	return ix.store.Close()
}

// Indexer chunks, embeds and stores document text.
type Indexer struct {
	chunker  *Chunker
	embedder Embedder
	newStore StoreFactory
	opts     IndexOptions
}

// NewIndexer creates an indexer. A zero BatchSize uses the default.
func NewIndexer(chunker *Chunker, embedder Embedder, newStore StoreFactory, opts IndexOptions) (*Indexer, error) {
	if chunker == nil {
		return nil, fmt.Errorf("chunker cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if newStore == nil {
		return nil, fmt.Errorf("store factory cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		newStore: newStore,
		opts:     opts,
	}, nil
}

// BuildIndex splits text into chunks, embeds them in batches and stores them
// in a fresh store. Blank text produces an empty index. On failure the
// partially built store is closed.
func (ix *Indexer) BuildIndex(ctx context.Context, text string) (*Index, error) {
	store, err := ix.newStore(ctx, ix.embedder.GetDimension())
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	index := &Index{
		ID:    uuid.NewString(),
		Model: ix.embedder.GetModel(),
		store: store,
	}

	chunks := ix.chunker.Split(text)
	for batchStart := 0; batchStart < len(chunks); batchStart += ix.opts.BatchSize {
		batchEnd := batchStart + ix.opts.BatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}

		batch := chunks[batchStart:batchEnd]
		embeddingRecords, err := ix.embedder.Embed(ctx, batch)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to generate embeddings for batch starting at %d: %w", batchStart, err), store.Close())
		}
		if len(embeddingRecords) != len(batch) {
			return nil, errors.Join(fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(batch), len(embeddingRecords)), store.Close())
		}

		records := make([]ChunkRecord, len(batch))
		for i := range batch {
			pos := batchStart + i
			records[i] = ChunkRecord{
				ChunkID:   index.ID + ":" + strconv.Itoa(pos),
				Index:     pos,
				Text:      batch[i],
				Embedding: embeddingRecords[i].Embedding,
			}
		}

		if err := store.Insert(ctx, records); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to insert batch starting at %d: %w", batchStart, err), store.Close())
		}
	}

	index.Chunks = len(chunks)
	return index, nil
}
