// Package pinecone implements core.VectorIndex against the Pinecone data
// plane REST API. The chunk text is stored in vector metadata under the
// "text" key, alongside any caller-provided metadata.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
)

const textMetadataKey = "text"

// upsertBatchSize bounds one upsert request; Pinecone rejects oversized
// batches.
const upsertBatchSize = 100

// Options configure the Pinecone index client.
type Options struct {
	// APIKey authenticates data plane requests.
	APIKey string

	// Host is the index endpoint, e.g.
	// https://my-index-abc123.svc.us-east-1-aws.pinecone.io.
	Host string

	// Namespace scopes all operations. Empty uses the default namespace.
	Namespace string

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Logger receives request events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Index is a Pinecone-backed core.VectorIndex.
type Index struct {
	opts   Options
	client *http.Client
}

var _ core.VectorIndex = (*Index)(nil)

// New creates a Pinecone index client.
func New(optFns ...func(o *Options)) *Index {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Index{opts: opts, client: client}
}

func (x *Index) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(x.opts.Host, "/")+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Api-Key", x.opts.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read pinecone response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinecone %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode pinecone response: %w", err)
		}
	}
	return nil
}

type queryRequest struct {
	Vector          []float32   `json:"vector"`
	TopK            int         `json:"topK"`
	Namespace       string      `json:"namespace,omitempty"`
	Filter          core.Filter `json:"filter,omitempty"`
	IncludeMetadata bool        `json:"includeMetadata"`
}

type queryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type queryResponse struct {
	Matches []queryMatch `json:"matches"`
}

// Query implements core.VectorIndex. The filter is validated locally before
// the request so an unsupported operator fails fast with
// *core.UnsupportedFilterError instead of an opaque API error.
func (x *Index) Query(ctx context.Context, vector []float32, topK int, filter core.Filter) ([]core.Chunk, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}
	var resp queryResponse
	err := x.do(ctx, http.MethodPost, "/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       x.opts.Namespace,
		Filter:          filter,
		IncludeMetadata: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	chunks := make([]core.Chunk, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		text, _ := m.Metadata[textMetadataKey].(string)
		metadata := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			if k == textMetadataKey {
				continue
			}
			metadata[k] = v
		}
		chunks = append(chunks, core.Chunk{ID: m.ID, Text: text, Score: m.Score, Metadata: metadata})
	}
	x.opts.Logger.Debug("pinecone query", "matches", len(chunks), "top_k", topK)
	return chunks, nil
}

type upsertVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []upsertVector `json:"vectors"`
	Namespace string         `json:"namespace,omitempty"`
}

// Upsert implements core.VectorIndex, batching large record sets.
func (x *Index) Upsert(ctx context.Context, records []core.VectorRecord) error {
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		vectors := make([]upsertVector, 0, end-start)
		for _, rec := range records[start:end] {
			metadata := make(map[string]any, len(rec.Metadata)+1)
			for k, v := range rec.Metadata {
				metadata[k] = v
			}
			if rec.Text != "" {
				metadata[textMetadataKey] = rec.Text
			}
			vectors = append(vectors, upsertVector{ID: rec.ID, Values: rec.Values, Metadata: metadata})
		}
		err := x.do(ctx, http.MethodPost, "/vectors/upsert", upsertRequest{
			Vectors:   vectors,
			Namespace: x.opts.Namespace,
		}, nil)
		if err != nil {
			return err
		}
		x.opts.Logger.Info("pinecone upsert batch", "from", start+1, "to", end)
	}
	return nil
}

type fetchResponse struct {
	Vectors map[string]struct {
		ID       string         `json:"id"`
		Values   []float32      `json:"values"`
		Metadata map[string]any `json:"metadata"`
	} `json:"vectors"`
}

// Fetch implements core.VectorIndex.
func (x *Index) Fetch(ctx context.Context, ids []string) (map[string]core.VectorRecord, error) {
	if len(ids) == 0 {
		return map[string]core.VectorRecord{}, nil
	}
	params := url.Values{}
	for _, id := range ids {
		params.Add("ids", id)
	}
	if x.opts.Namespace != "" {
		params.Set("namespace", x.opts.Namespace)
	}
	var resp fetchResponse
	if err := x.do(ctx, http.MethodGet, "/vectors/fetch?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]core.VectorRecord, len(resp.Vectors))
	for id, v := range resp.Vectors {
		text, _ := v.Metadata[textMetadataKey].(string)
		metadata := make(map[string]any, len(v.Metadata))
		for k, val := range v.Metadata {
			if k == textMetadataKey {
				continue
			}
			metadata[k] = val
		}
		out[id] = core.VectorRecord{ID: id, Values: v.Values, Text: text, Metadata: metadata}
	}
	return out, nil
}

type statsResponse struct {
	Dimension  int `json:"dimension"`
	TotalCount int `json:"totalVectorCount"`
	Namespaces map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

// Stats implements core.VectorIndex. The count is scoped to the configured
// namespace when one is set.
func (x *Index) Stats(ctx context.Context) (core.IndexStats, error) {
	var resp statsResponse
	if err := x.do(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return core.IndexStats{}, err
	}
	count := resp.TotalCount
	if x.opts.Namespace != "" {
		count = resp.Namespaces[x.opts.Namespace].VectorCount
	}
	return core.IndexStats{Count: count, Dimension: resp.Dimension, Namespace: x.opts.Namespace}, nil
}
