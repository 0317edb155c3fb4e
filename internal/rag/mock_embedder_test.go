package rag

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const mockDimension = 32

// mockEmbedder implements Embedder with a bag-of-words hash embedding, so
// texts with the same words get identical vectors.
type mockEmbedder struct {
	embedFunc func(ctx context.Context, texts []string) ([]EmbeddingRecord, error)
	calls     int
	batches   [][]string
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	m.calls++
	m.batches = append(m.batches, texts)
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: hashEmbedding(text),
			Index:     i,
			Model:     "mock",
		}
	}
	return records, nil
}

func (m *mockEmbedder) GetModel() string {
	return "mock"
}

func (m *mockEmbedder) GetDimension() int {
	return mockDimension
}

func hashEmbedding(text string) []float32 {
	vec := make([]float32, mockDimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%mockDimension]++
	}
	return vec
}
