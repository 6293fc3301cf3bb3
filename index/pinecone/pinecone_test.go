package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragmesh/ragmesh/core"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) *Index {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(func(o *Options) {
		o.APIKey = "test-key"
		o.Host = srv.URL
		o.Namespace = "chatbot"
	})
}

func TestIndex_Query(t *testing.T) {
	var gotReq queryRequest
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(queryResponse{Matches: []queryMatch{
			{ID: "a", Score: 0.93, Metadata: map[string]any{"text": "first chunk", "lang": "en"}},
			{ID: "b", Score: 0.71, Metadata: map[string]any{"text": "second chunk"}},
		}})
	})

	chunks, err := idx.Query(context.Background(), []float32{0.1, 0.2}, 5, core.Filter{"lang": map[string]any{"$eq": "en"}})
	require.NoError(t, err)

	assert.Equal(t, 5, gotReq.TopK)
	assert.Equal(t, "chatbot", gotReq.Namespace)
	assert.True(t, gotReq.IncludeMetadata)

	require.Len(t, chunks, 2)
	assert.Equal(t, "first chunk", chunks[0].Text)
	assert.Equal(t, 0.93, chunks[0].Score)
	assert.Equal(t, "en", chunks[0].Metadata["lang"])
	// The text key is lifted out of metadata.
	assert.NotContains(t, chunks[0].Metadata, "text")
}

func TestIndex_QueryRejectsUnsupportedFilter(t *testing.T) {
	idx := New(func(o *Options) { o.Host = "http://unused" })

	_, err := idx.Query(context.Background(), []float32{0.1}, 3, core.Filter{
		"lang": map[string]any{"$regex": "en.*"},
	})
	var ferr *core.UnsupportedFilterError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "$regex", ferr.Op)
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter core.Filter
		wantOp string
	}{
		{name: "nil filter", filter: nil},
		{name: "equality shorthand", filter: core.Filter{"type": "faq"}},
		{name: "operator map", filter: core.Filter{"score": map[string]any{"$gte": 0.5}}},
		{name: "conjunction", filter: core.Filter{"$and": []any{
			map[string]any{"type": map[string]any{"$eq": "faq"}},
			map[string]any{"lang": map[string]any{"$in": []any{"en", "de"}}},
		}}},
		{name: "unknown operator", filter: core.Filter{"type": map[string]any{"$like": "x"}}, wantOp: "$like"},
		{name: "malformed and", filter: core.Filter{"$and": "not a list"}, wantOp: "$and"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if tt.wantOp == "" {
				assert.NoError(t, err)
				return
			}
			var ferr *core.UnsupportedFilterError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tt.wantOp, ferr.Op)
		})
	}
}

func TestIndex_Upsert(t *testing.T) {
	var got upsertRequest
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vectors/upsert", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	})

	err := idx.Upsert(context.Background(), []core.VectorRecord{
		{ID: "doc-1", Values: []float32{0.5}, Text: "hello", Metadata: map[string]any{"source": "faq"}},
	})
	require.NoError(t, err)
	require.Len(t, got.Vectors, 1)
	assert.Equal(t, "doc-1", got.Vectors[0].ID)
	assert.Equal(t, "hello", got.Vectors[0].Metadata["text"])
	assert.Equal(t, "faq", got.Vectors[0].Metadata["source"])
}

func TestIndex_Stats(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/describe_index_stats", r.URL.Path)
		w.Write([]byte(`{"dimension":1536,"totalVectorCount":400,"namespaces":{"chatbot":{"vectorCount":123}}}`))
	})

	stats, err := idx.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 123, stats.Count)
	assert.Equal(t, 1536, stats.Dimension)
	assert.Equal(t, "chatbot", stats.Namespace)
}

func TestIndex_ErrorStatus(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not found", http.StatusNotFound)
	})

	_, err := idx.Query(context.Background(), []float32{0.1}, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
