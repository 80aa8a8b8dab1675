// Package index keeps chunk embeddings in memory and answers nearest-neighbour
// queries by cosine similarity.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/fabfab/heraklion-chatbot/embeddings"
	"github.com/fabfab/heraklion-chatbot/ingestion"
)

// DefaultTopK is used when a query asks for k <= 0.
const DefaultTopK = 4

var (
	// ErrEmptyCorpus is returned when building from zero chunks.
	ErrEmptyCorpus = errors.New("corpus produced no chunks")
	// ErrIndexNotReady is returned when querying an index that was never built.
	ErrIndexNotReady = errors.New("index is not ready")
)

type BuildOptions struct {
	// BatchSize is the number of chunks sent per embedding call.
	BatchSize int
	// Concurrency bounds the embedding calls in flight.
	Concurrency int
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

type entry struct {
	chunk  ingestion.Chunk
	vector []float32
	norm   float64
}

// Index is immutable once built and safe for concurrent queries.
type Index struct {
	entries   []entry
	dimension int
}

type Match struct {
	Chunk ingestion.Chunk
	Score float64
}

// Build embeds every chunk and stores the vectors in chunk order.
func Build(ctx context.Context, chunks []ingestion.Chunk, embedder embeddings.Embedder, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}
	opts = opts.withDefaults()

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for offset := 0; offset < len(chunks); offset += opts.BatchSize {
		offset := offset
		end := min(offset+opts.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-offset)
			for _, c := range chunks[offset:end] {
				texts = append(texts, c.Text)
			}

			batch, err := embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", offset, end-1, err)
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors for %d texts", offset, end-1, len(batch), len(texts))
			}
			copy(vectors[offset:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &Index{
		entries:   make([]entry, len(chunks)),
		dimension: len(vectors[0]),
	}
	for i, vec := range vectors {
		if len(vec) == 0 || len(vec) != idx.dimension {
			return nil, fmt.Errorf("chunk %d: embedding dimension %d, expected %d", i, len(vec), idx.dimension)
		}
		idx.entries[i] = entry{chunk: chunks[i], vector: vec, norm: norm(vec)}
	}

	return idx, nil
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Dimension reports the embedding length shared by all entries.
func (ix *Index) Dimension() int {
	if ix == nil {
		return 0
	}
	return ix.dimension
}

// Query returns up to k chunks ordered by descending cosine similarity to
// vector. Equal scores keep chunk order.
func (ix *Index) Query(vector []float32, k int) ([]Match, error) {
	if ix == nil || len(ix.entries) == 0 {
		return nil, ErrIndexNotReady
	}
	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(vector), ix.dimension)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	qnorm := norm(vector)
	matches := make([]Match, len(ix.entries))
	for i := range ix.entries {
		e := &ix.entries[i]
		matches[i] = Match{Chunk: e.chunk, Score: cosine(vector, qnorm, e.vector, e.norm)}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (anorm * bnorm)
}
