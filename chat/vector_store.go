package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabfab/heraklion-chatbot/index"
)

type VectorStore interface {
	SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]ChunkResult, error)
}

// errIndexUnavailable marks failures to obtain the index, as opposed to
// failures while searching it.
var errIndexUnavailable = errors.New("index unavailable")

// MemoryVectorStore searches the lazily built in-process index.
type MemoryVectorStore struct {
	cache *index.Cache
}

func NewMemoryVectorStore(cache *index.Cache) *MemoryVectorStore {
	return &MemoryVectorStore{cache: cache}
}

func (s *MemoryVectorStore) SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]ChunkResult, error) {
	if s.cache == nil {
		return nil, fmt.Errorf("%w: cache is nil", errIndexUnavailable)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}

	ix, err := s.cache.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errIndexUnavailable, err)
	}

	matches, err := ix.Query(embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]ChunkResult, len(matches))
	for i, m := range matches {
		results[i] = ChunkResult{
			ChunkID: m.Chunk.ID,
			Index:   m.Chunk.Index,
			Start:   m.Chunk.Start,
			End:     m.Chunk.End,
			Content: m.Chunk.Text,
			Score:   m.Score,
		}
	}
	return results, nil
}

var _ VectorStore = (*MemoryVectorStore)(nil)
