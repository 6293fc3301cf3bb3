package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedder_Deterministic(t *testing.T) {
	m := New(64)
	a, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := m.Embed(context.Background(), "different")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEmbedder_UnitVector(t *testing.T) {
	m := New(0)
	vec, err := m.Embed(context.Background(), "normalize me")
	require.NoError(t, err)
	require.Len(t, vec, 384)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbedder_BatchOrderPreserving(t *testing.T) {
	m := New(16)
	texts := []string{"one", "two", "three"}
	batch, err := m.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, err := m.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}
