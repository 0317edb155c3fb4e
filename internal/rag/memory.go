package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var ErrStoreClosed = errors.New("vector store closed")

// MemoryStore is an in-process VectorStore performing exact cosine search.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   []ChunkRecord
	norms     []float64
	closed    bool
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimension int) (*MemoryStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}
	return &MemoryStore{dimension: dimension}, nil
}

// MemoryStoreFactory opens a MemoryStore per index.
func MemoryStoreFactory(_ context.Context, dimension int) (VectorStore, error) {
	return NewMemoryStore(dimension)
}

// Insert appends records to the store.
func (s *MemoryStore) Insert(_ context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	for _, r := range records {
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.dimension, len(r.Embedding))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for _, r := range records {
		s.records = append(s.records, r)
		s.norms = append(s.norms, norm(r.Embedding))
	}
	return nil
}

// Search ranks every stored chunk by cosine similarity to queryVector.
// Ties keep insertion order.
func (s *MemoryStore) Search(_ context.Context, queryVector []float32, topK int) ([]ContextChunk, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.dimension, len(queryVector))
	}
	if topK <= 0 {
		return []ContextChunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	qn := norm(queryVector)
	chunks := make([]ContextChunk, len(s.records))
	for i, r := range s.records {
		chunks[i] = ContextChunk{
			ChunkID: r.ChunkID,
			Index:   r.Index,
			Text:    r.Text,
			Score:   float32(cosine(queryVector, r.Embedding, qn, s.norms[i])),
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return len(s.records), nil
}

// Close discards all records.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.norms = nil
	s.closed = true
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
