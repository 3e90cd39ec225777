// Package indextest is a behavioral test suite shared by every VectorIndex adapter.
package indextest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

// Factory returns a fresh, empty index for one subtest.
type Factory func(t *testing.T) domain.VectorIndex

// Run exercises the VectorIndex contract against indexes built by newIndex.
func Run(t *testing.T, newIndex Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and describe", func(t *testing.T) {
		idx := newIndex(t)
		ok, err := idx.HasCollection(ctx, "docs")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		ok, err = idx.HasCollection(ctx, "docs")
		require.NoError(t, err)
		assert.True(t, ok)

		info, err := idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 3, info.Dimension)
		assert.Equal(t, 0, info.Count)
	})

	t.Run("create twice", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		err := idx.CreateCollection(ctx, "docs", 3)
		assert.ErrorIs(t, err, domain.ErrCollectionExists)
	})

	t.Run("describe absent", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.DescribeCollection(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrCollectionAbsent)
	})

	t.Run("search absent", func(t *testing.T) {
		idx := newIndex(t)
		_, err := idx.Search(ctx, "missing", [][]float32{{1, 0, 0}}, 1, nil)
		assert.ErrorIs(t, err, domain.ErrCollectionAbsent)
	})

	t.Run("upsert counts and replaces", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		require.NoError(t, idx.Upsert(ctx, "docs", sampleRecords()))
		info, err := idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 4, info.Count)

		require.NoError(t, idx.Upsert(ctx, "docs", []domain.Record{{ID: 0, Vector: []float32{0, 0, 1}, Text: "zed"}}))
		info, err = idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 4, info.Count)
	})

	t.Run("upsert is all or nothing", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		bad := append(sampleRecords(), domain.Record{ID: 9, Vector: []float32{1}, Text: "short"})
		require.Error(t, idx.Upsert(ctx, "docs", bad))
		info, err := idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 0, info.Count)
	})

	t.Run("search orders by distance", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		require.NoError(t, idx.Upsert(ctx, "docs", sampleRecords()))

		res, err := idx.Search(ctx, "docs", [][]float32{{1, 0.1, 0}}, 3, []string{domain.FieldText})
		require.NoError(t, err)
		require.Len(t, res, 1)
		hits := res[0]
		require.Len(t, hits, 3)
		assert.Equal(t, "alpha", hits[0].Entity[domain.FieldText])
		for i, h := range hits {
			assert.GreaterOrEqual(t, h.Distance, 0.0)
			if i > 0 {
				assert.LessOrEqual(t, hits[i-1].Distance, h.Distance)
			}
		}
	})

	t.Run("limit above count returns count", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		require.NoError(t, idx.Upsert(ctx, "docs", sampleRecords()))
		res, err := idx.Search(ctx, "docs", [][]float32{{1, 0, 0}}, 50, nil)
		require.NoError(t, err)
		assert.Len(t, res[0], 4)
	})

	t.Run("stored vector round trip", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		records := sampleRecords()
		require.NoError(t, idx.Upsert(ctx, "docs", records))
		for _, r := range records {
			res, err := idx.Search(ctx, "docs", [][]float32{r.Vector}, 1, []string{domain.FieldText})
			require.NoError(t, err)
			require.Len(t, res[0], 1)
			assert.Equal(t, r.ID, res[0][0].ID)
			assert.Equal(t, r.Text, res[0][0].Entity[domain.FieldText])
			assert.InDelta(t, 0, res[0][0].Distance, 1e-5)
		}
	})

	t.Run("empty collection search", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		res, err := idx.Search(ctx, "docs", [][]float32{{1, 0, 0}}, 3, []string{domain.FieldText})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Empty(t, res[0])
	})

	t.Run("drop", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3))
		require.NoError(t, idx.Upsert(ctx, "docs", sampleRecords()))
		require.NoError(t, idx.DropCollection(ctx, "docs"))
		ok, err := idx.HasCollection(ctx, "docs")
		require.NoError(t, err)
		assert.False(t, ok)

		// A dropped name can be created again, empty.
		require.NoError(t, idx.CreateCollection(ctx, "docs", 2))
		info, err := idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 2, info.Dimension)
		assert.Equal(t, 0, info.Count)
	})

	t.Run("collections are isolated", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.CreateCollection(ctx, "a", 3))
		require.NoError(t, idx.CreateCollection(ctx, "b", 3))
		require.NoError(t, idx.Upsert(ctx, "a", sampleRecords()))
		info, err := idx.DescribeCollection(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 0, info.Count)
	})
}

func sampleRecords() []domain.Record {
	return []domain.Record{
		{ID: 0, Vector: []float32{1, 0, 0}, Text: "alpha"},
		{ID: 1, Vector: []float32{0, 1, 0}, Text: "beta"},
		{ID: 2, Vector: []float32{0.7, 0.7, 0}, Text: "gamma"},
		{ID: 3, Vector: []float32{0, 0, 1}, Text: "delta"},
	}
}
