package core

import "context"

// Embedder turns text into a fixed-dimension vector. Implementations wrap a
// provider API (embedding/openai) or a deterministic stand-in for tests
// (embedding/mock).
type Embedder interface {
	// Embed converts a single text into an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts in order, one vector per input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
