package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/indextest"
)

func TestStorageContract(t *testing.T) {
	indextest.Run(t, func(t *testing.T) domain.VectorIndex { return NewStorage() })
}

func TestUpsertCopiesVectors(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.CreateCollection(ctx, "docs", 2))
	vec := []float32{1, 0}
	require.NoError(t, s.Upsert(ctx, "docs", []domain.Record{{ID: 0, Vector: vec, Text: "a"}}))
	vec[0], vec[1] = 0, 1

	res, err := s.Search(ctx, "docs", [][]float32{{1, 0}}, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, res[0][0].Distance, 1e-9)
}

func TestInvalidDimension(t *testing.T) {
	assert.Error(t, NewStorage().CreateCollection(context.Background(), "docs", 0))
}
