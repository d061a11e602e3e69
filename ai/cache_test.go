package ai_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/ai"
	"github.com/domwxyz/marxist-search/ai/mock"
)

func TestCachedEmbedder_EmbedText(t *testing.T) {
	inner := mock.NewMockEmbedderDim(16)
	cached := ai.NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	first, err := cached.EmbedText(ctx, "permanent revolution")
	require.NoError(t, err)
	require.Len(t, first, 16)
	assert.Equal(t, 1, inner.CallCount())

	second, err := cached.EmbedText(ctx, "permanent revolution")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.CallCount(), "cache hit must not call the inner embedder")

	hits, misses := cached.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedEmbedder_EmbedTexts_PartialHit(t *testing.T) {
	inner := mock.NewMockEmbedderDim(16)
	cached := ai.NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	warm, err := cached.EmbedText(ctx, "alpha")
	require.NoError(t, err)

	vectors, err := cached.EmbedTexts(ctx, []string{"beta", "alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	assert.Equal(t, warm, vectors[1])
	for _, v := range vectors {
		assert.Len(t, v, 16)
	}

	// Only the two misses reach the inner embedder.
	direct, err := inner.EmbedText(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, direct, vectors[0])
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	inner := mock.NewMockEmbedderDim(8)
	cached := ai.NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	_, err := cached.EmbedText(ctx, "one")
	require.NoError(t, err)
	_, err = cached.EmbedText(ctx, "two")
	require.NoError(t, err)
	_, err = cached.EmbedText(ctx, "three") // evicts "one"
	require.NoError(t, err)

	before := inner.CallCount()
	_, err = cached.EmbedText(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, before+1, inner.CallCount(), "evicted entry must re-embed")
}

func TestCachedEmbedder_Dimension(t *testing.T) {
	inner := mock.NewMockEmbedderDim(384)
	cached := ai.NewCachedEmbedder(inner, 4)
	assert.Equal(t, 384, cached.Dimension())
}
