package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragmesh/ragmesh/core"
)

// stubEmbedder returns a fixed vector and records the texts it embedded.
type stubEmbedder struct {
	embedded []string
	err      error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.embedded = append(s.embedded, text)
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }

// stubIndex returns canned chunks and records the queries it saw.
type stubIndex struct {
	chunks  []core.Chunk
	err     error
	queries int
	lastK   int
	lastF   core.Filter
}

func (s *stubIndex) Query(_ context.Context, _ []float32, topK int, filter core.Filter) ([]core.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.queries++
	s.lastK = topK
	s.lastF = filter
	return s.chunks, nil
}

func (s *stubIndex) Upsert(context.Context, []core.VectorRecord) error { return nil }
func (s *stubIndex) Fetch(context.Context, []string) (map[string]core.VectorRecord, error) {
	return nil, nil
}
func (s *stubIndex) Stats(context.Context) (core.IndexStats, error) {
	return core.IndexStats{}, nil
}

var _ core.Embedder = (*stubEmbedder)(nil)
var _ core.VectorIndex = (*stubIndex)(nil)

func scored(scores ...float64) []core.Chunk {
	chunks := make([]core.Chunk, len(scores))
	for i, s := range scores {
		chunks[i] = core.Chunk{Text: "chunk", Score: s}
	}
	return chunks
}

func TestAssembler_MinScoreFilterAndRanks(t *testing.T) {
	index := &stubIndex{chunks: []core.Chunk{
		{Text: "alpha", Score: 0.9},
		{Text: "beta", Score: 0.7},
		{Text: "gamma", Score: 0.4},
	}}
	a := NewAssembler(&stubEmbedder{}, index)

	got, err := a.Retrieve(context.Background(), "question", WithMinScore(0.5))
	require.NoError(t, err)
	require.Len(t, got.Chunks, 2)
	assert.Equal(t, "alpha", got.Chunks[0].Text)
	assert.Equal(t, "beta", got.Chunks[1].Text)

	// Ranks renumber after filtering and render in score order.
	assert.Equal(t, "[1] alpha\n\n[2] beta", got.Render())
}

func TestAssembler_IndexOrderingIsNonIncreasing(t *testing.T) {
	index := &stubIndex{chunks: scored(0.95, 0.8, 0.8, 0.41)}
	a := NewAssembler(&stubEmbedder{}, index)

	got, err := a.Retrieve(context.Background(), "question")
	require.NoError(t, err)
	for i := 1; i < len(got.Chunks); i++ {
		assert.GreaterOrEqual(t, got.Chunks[i-1].Score, got.Chunks[i].Score)
	}
}

func TestAssembler_EmptyResultIsValid(t *testing.T) {
	index := &stubIndex{chunks: scored(0.2, 0.1)}
	a := NewAssembler(&stubEmbedder{}, index, func(o *Options) {
		min := 0.5
		o.MinScore = &min
	})

	got, err := a.Retrieve(context.Background(), "question")
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Equal(t, "", got.Render())
}

func TestAssembler_EmbedFailurePropagates(t *testing.T) {
	a := NewAssembler(&stubEmbedder{err: errors.New("quota exceeded")}, &stubIndex{})

	_, err := a.Retrieve(context.Background(), "question")
	var rerr *core.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "embed", rerr.Op)
}

func TestAssembler_QueryFailurePropagates(t *testing.T) {
	a := NewAssembler(&stubEmbedder{}, &stubIndex{err: errors.New("index unavailable")})

	_, err := a.Retrieve(context.Background(), "question")
	var rerr *core.RetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "query", rerr.Op)
}

func TestAssembler_TopKAndFilterForwarded(t *testing.T) {
	index := &stubIndex{}
	a := NewAssembler(&stubEmbedder{}, index, func(o *Options) { o.TopK = 7 })

	_, err := a.Retrieve(context.Background(), "q", WithFilter(core.Filter{"type": map[string]any{"$eq": "faq"}}))
	require.NoError(t, err)
	assert.Equal(t, 7, index.lastK)
	require.NotNil(t, index.lastF)

	_, err = a.Retrieve(context.Background(), "q", WithTopK(2))
	require.NoError(t, err)
	assert.Equal(t, 2, index.lastK)
}

func TestAssembler_RetrieveBatchIndependent(t *testing.T) {
	index := &stubIndex{chunks: scored(0.9)}
	emb := &stubEmbedder{}
	a := NewAssembler(emb, index)

	got, err := a.RetrieveBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 3, index.queries)
	assert.Equal(t, []string{"one", "two", "three"}, emb.embedded)
	for _, c := range got {
		assert.Len(t, c.Chunks, 1)
	}
}
