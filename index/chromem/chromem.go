// Package chromem implements core.VectorIndex over chromem-go, a pure Go
// embedded vector database. It serves local development and tests; the
// Pinecone backend remains the production index.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ragmesh/ragmesh/core"
)

// metaKey holds the JSON-encoded caller metadata inside the chromem
// document metadata, which only supports string values.
const metaKey = "meta"

// Options configure the embedded index.
type Options struct {
	// Collection names the chromem collection. Defaults to "ragmesh".
	Collection string
}

// Index is an embedded core.VectorIndex.
type Index struct {
	mu  sync.RWMutex
	col *chromem.Collection
	dim int
}

var _ core.VectorIndex = (*Index)(nil)

// New creates an in-process index.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := Options{Collection: "ragmesh"}
	for _, fn := range optFns {
		fn(&opts)
	}
	db := chromem.NewDB()
	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := db.CreateCollection(opts.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{col: col}, nil
}

// Query implements core.VectorIndex. chromem's filtering is exact string
// matching, so only equality predicates ($eq or the literal shorthand) are
// supported; anything else fails with *core.UnsupportedFilterError.
func (x *Index) Query(ctx context.Context, vector []float32, topK int, filter core.Filter) ([]core.Chunk, error) {
	where, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	count := x.col.Count()
	if count == 0 {
		return []core.Chunk{}, nil
	}
	// chromem rejects nResults larger than the collection.
	if topK > count {
		topK = count
	}
	results, err := x.col.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	chunks := make([]core.Chunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, core.Chunk{
			ID:       res.ID,
			Text:     res.Content,
			Score:    float64(res.Similarity),
			Metadata: decodeMetadata(res.Metadata),
		})
	}
	return chunks, nil
}

// Upsert implements core.VectorIndex.
func (x *Index) Upsert(ctx context.Context, records []core.VectorRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, rec := range records {
		doc := chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: rec.Values,
			Metadata:  encodeMetadata(rec.Metadata),
		}
		if err := x.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %q: %w", rec.ID, err)
		}
		if x.dim == 0 {
			x.dim = len(rec.Values)
		}
	}
	return nil
}

// Fetch implements core.VectorIndex. Missing ids are skipped.
func (x *Index) Fetch(ctx context.Context, ids []string) (map[string]core.VectorRecord, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string]core.VectorRecord, len(ids))
	for _, id := range ids {
		doc, err := x.col.GetByID(ctx, id)
		if err != nil {
			continue
		}
		out[id] = core.VectorRecord{
			ID:       doc.ID,
			Values:   doc.Embedding,
			Text:     doc.Content,
			Metadata: decodeMetadata(doc.Metadata),
		}
	}
	return out, nil
}

// Stats implements core.VectorIndex. The dimension is that of the first
// upserted vector; an index that never stored anything reports zero.
func (x *Index) Stats(ctx context.Context) (core.IndexStats, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return core.IndexStats{Count: x.col.Count(), Dimension: x.dim}, nil
}

// whereClause converts a filter into chromem's exact-match map.
func whereClause(filter core.Filter) (map[string]string, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	where := make(map[string]string, len(filter))
	for field, cond := range filter {
		switch v := cond.(type) {
		case string:
			where[field] = v
		case map[string]any:
			for op, operand := range v {
				if op != "$eq" {
					return nil, &core.UnsupportedFilterError{Op: op}
				}
				s, ok := operand.(string)
				if !ok {
					return nil, &core.UnsupportedFilterError{Op: op}
				}
				where[field] = s
			}
		default:
			return nil, &core.UnsupportedFilterError{Op: field}
		}
	}
	return where, nil
}

func encodeMetadata(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = fmt.Sprint(v)
	}
	if data, err := json.Marshal(metadata); err == nil {
		out[metaKey] = string(data)
	}
	return out
}

func decodeMetadata(stored map[string]string) map[string]any {
	if raw, ok := stored[metaKey]; ok {
		var metadata map[string]any
		if err := json.Unmarshal([]byte(raw), &metadata); err == nil {
			return metadata
		}
	}
	out := make(map[string]any, len(stored))
	for k, v := range stored {
		if k == metaKey {
			continue
		}
		out[k] = v
	}
	return out
}
