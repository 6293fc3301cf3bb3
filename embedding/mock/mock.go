// Package mock provides a deterministic core.Embedder for tests and local
// development. Embeddings derive from a hash of the input text, so equal
// texts always map to equal vectors without any network dependency.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/ragmesh/ragmesh/core"
)

// Embedder generates hash-based unit vectors of a fixed dimension.
type Embedder struct {
	dimensions int
}

var _ core.Embedder = (*Embedder)(nil)

// New creates a mock embedder. dimensions <= 0 defaults to 384.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Embedder{dimensions: dimensions}
}

// Embed implements core.Embedder with a deterministic pseudo-random vector
// seeded by the text hash.
func (m *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// EmbedBatch implements core.Embedder.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int { return m.dimensions }

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
