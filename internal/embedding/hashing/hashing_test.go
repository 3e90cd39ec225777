package hashing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/corpus"
	"semsearch/internal/vectorindex/flat"
)

func TestTokens(t *testing.T) {
	e, err := New(DefaultDimension)
	require.NoError(t, err)

	assert.Equal(t, []string{"ai", "machine", "learn", "technology"}, e.Tokens("AI and machine learning technologies"))
	assert.Equal(t, []string{"database", "vector", "similarity"}, e.Tokens("database for vector similarity"))
	assert.Equal(t, []string{"understand", "human", "text"}, e.Tokens("understanding human text"))
	assert.Empty(t, e.Tokens("the a of 42 !!"))
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"databases":      "database",
		"technologies":   "technology",
		"training":       "train",
		"revolutionized": "revolutioniz",
		"class":          "class",
		"ring":           "ring",
		"bus":            "bus",
	}
	for in, want := range tests {
		assert.Equal(t, want, stem(in), in)
	}
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()
	e, err := New(DefaultDimension)
	require.NoError(t, err)

	t.Run("unit length", func(t *testing.T) {
		v, err := e.Embed(ctx, "Vector databases enable efficient similarity search at scale.")
		require.NoError(t, err)
		require.Len(t, v, DefaultDimension)
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1, sum, 1e-5)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := e.Embed(ctx, "understanding human text")
		b, _ := e.Embed(ctx, "understanding human text")
		assert.Equal(t, a, b)
	})

	t.Run("no tokens", func(t *testing.T) {
		v, err := e.Embed(ctx, "   ")
		require.NoError(t, err)
		assert.Len(t, v, DefaultDimension)
		for _, x := range v {
			assert.Zero(t, x)
		}
	})

	t.Run("batch matches single", func(t *testing.T) {
		batch, err := e.EmbedBatch(ctx, corpus.Default)
		require.NoError(t, err)
		require.Len(t, batch, len(corpus.Default))
		single, _ := e.Embed(ctx, corpus.Default[5])
		assert.Equal(t, single, batch[5])
	})

	t.Run("cancelled batch", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.EmbedBatch(cctx, []string{"x"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPresetsFindRelatedDocuments(t *testing.T) {
	ctx := context.Background()
	e, err := New(DefaultDimension)
	require.NoError(t, err)
	docs, err := e.EmbedBatch(ctx, corpus.Default)
	require.NoError(t, err)

	candidates := make([]flat.Candidate, len(docs))
	for i, v := range docs {
		candidates[i] = flat.Candidate{ID: int64(i), Vector: v, Text: corpus.Default[i]}
	}

	want := map[string]int64{"ai": 1, "databases": 2, "language": 3}
	for _, p := range corpus.Presets {
		q, err := e.Embed(ctx, p.Query)
		require.NoError(t, err)
		hits := flat.Rank(q, candidates, 1, nil)
		assert.Equal(t, want[p.Name], hits[0].ID, p.Query)
	}
}

func TestInvalidDimension(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}
