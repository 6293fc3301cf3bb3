package core

import "context"

// Chunk is one similarity-search hit: the stored text, its score and any
// metadata persisted alongside the vector. Indexes return chunks in
// descending score order.
type Chunk struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]any
}

// VectorRecord is the unit of upsert: an id, its embedding, the source text
// and optional metadata. The core never inspects how a backend stores it.
type VectorRecord struct {
	ID       string
	Values   []float32
	Text     string
	Metadata map[string]any
}

// IndexStats summarizes an index.
type IndexStats struct {
	Count     int
	Dimension int
	Namespace string
}

// Filter is a structured predicate over vector metadata using the Pinecone
// operator vocabulary ($eq, $ne, $in, $and, ...). Backends that cannot
// evaluate a given operator fail with UnsupportedFilterError rather than
// silently ignoring it.
type Filter map[string]any

// VectorIndex is the similarity-search collaborator. Implementations:
// index/pinecone (production REST backend) and index/chromem (embedded,
// local development).
type VectorIndex interface {
	// Query returns up to topK chunks ordered by descending similarity.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Chunk, error)

	// Upsert inserts or replaces records.
	Upsert(ctx context.Context, records []VectorRecord) error

	// Fetch returns the records for the given ids, keyed by id. Missing
	// ids are absent from the result, not an error.
	Fetch(ctx context.Context, ids []string) (map[string]VectorRecord, error)

	// Stats describes the index.
	Stats(ctx context.Context) (IndexStats, error)
}
