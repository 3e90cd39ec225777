package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/corpus"
	"semsearch/internal/domain"
)

func loadedService(t *testing.T) (*SearchService, *countingEmbedder, *mockIndex) {
	t.Helper()
	emb, idx := newFixture(t)
	_, err := NewBootstrapper(emb, idx).EnsureCollection(context.Background(), corpus.DefaultCollection, corpus.Default)
	require.NoError(t, err)
	return NewSearchService(emb, idx, corpus.DefaultCollection), emb, idx
}

func TestSearchOrdersByDistance(t *testing.T) {
	s, _, _ := loadedService(t)

	res, err := s.Search(context.Background(), "vector similarity search", 5)
	require.NoError(t, err)
	require.Len(t, res.Entries, 5)
	assert.Equal(t, "vector similarity search", res.Query)
	for i, e := range res.Entries {
		assert.Equal(t, i+1, e.Rank)
		assert.Equal(t, corpus.Default[e.ID], e.Text)
		if i > 0 {
			assert.GreaterOrEqual(t, e.Distance, res.Entries[i-1].Distance)
		}
		assert.GreaterOrEqual(t, e.Similarity, 0.0)
		assert.LessOrEqual(t, e.Similarity, 100.0)
		assert.InDelta(t, roundTenth(Similarity(e.Distance)), e.Similarity, 1e-9)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	s, _, _ := loadedService(t)
	for _, k := range []int{1, 3, 8} {
		res, err := s.Search(context.Background(), "computing", k)
		require.NoError(t, err)
		assert.Len(t, res.Entries, k)
	}
}

func TestSearchStableNearest(t *testing.T) {
	s, _, _ := loadedService(t)
	want := map[string]int64{"ai": 1, "databases": 2, "language": 3}
	for _, p := range corpus.Presets {
		t.Run(p.Name, func(t *testing.T) {
			res, err := s.Search(context.Background(), p.Query, 3)
			require.NoError(t, err)
			require.NotEmpty(t, res.Entries)
			assert.Equal(t, want[p.Name], res.Entries[0].ID)
		})
	}
}

func TestSearchRoundTrip(t *testing.T) {
	s, _, _ := loadedService(t)
	for id, text := range corpus.Default {
		res, err := s.Search(context.Background(), text, 1)
		require.NoError(t, err)
		require.Len(t, res.Entries, 1)
		assert.Equal(t, int64(id), res.Entries[0].ID)
		assert.InDelta(t, 0, res.Entries[0].Distance, 1e-5)
		assert.InDelta(t, 100, res.Entries[0].Similarity, 1e-9)
	}
}

func TestSearchKeepsIndexOrder(t *testing.T) {
	s, _, idx := loadedService(t)
	idx.SearchFn = func(context.Context, string, [][]float32, int, []string) ([][]domain.Hit, error) {
		return [][]domain.Hit{{
			{ID: 5, Distance: 0.9, Entity: map[string]string{domain.FieldText: "far"}},
			{ID: 2, Distance: 0.1, Entity: map[string]string{domain.FieldText: "near"}},
		}}, nil
	}
	res, err := s.Search(context.Background(), "anything", 2)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, int64(5), res.Entries[0].ID)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, int64(2), res.Entries[1].ID)
	assert.Equal(t, 90.0, res.Entries[1].Similarity)
}

func TestSearchCachesDimension(t *testing.T) {
	s, _, idx := loadedService(t)
	before := idx.describes.Load()
	for range 3 {
		_, err := s.Search(context.Background(), "cloud", 2)
		require.NoError(t, err)
	}
	assert.Equal(t, before+1, idx.describes.Load())
}

func TestSearchErrors(t *testing.T) {
	t.Run("collection absent", func(t *testing.T) {
		emb, idx := newFixture(t)
		_, err := NewSearchService(emb, idx, "missing").Search(context.Background(), "q", 3)
		assert.ErrorIs(t, err, domain.ErrCollectionAbsent)
		assert.Zero(t, emb.embeds.Load())
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		emb, idx := newFixture(t)
		require.NoError(t, idx.CreateCollection(context.Background(), "small", 3))
		_, err := NewSearchService(emb, idx, "small").Search(context.Background(), "q", 3)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.Zero(t, idx.searches.Load())
	})

	t.Run("embedder down", func(t *testing.T) {
		s, emb, _ := loadedService(t)
		emb.err = errors.New("timeout")
		_, err := s.Search(context.Background(), "q", 3)
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})

	t.Run("index down", func(t *testing.T) {
		s, _, idx := loadedService(t)
		idx.SearchFn = func(context.Context, string, [][]float32, int, []string) ([][]domain.Hit, error) {
			return nil, errors.New("connection reset")
		}
		_, err := s.Search(context.Background(), "q", 3)
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})

	t.Run("describe fails", func(t *testing.T) {
		emb, idx := newFixture(t)
		idx.DescribeCollectionFn = func(context.Context, string) (domain.CollectionInfo, error) {
			return domain.CollectionInfo{}, errors.New("connection refused")
		}
		_, err := NewSearchService(emb, idx, "docs").Search(context.Background(), "q", 3)
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	})
}
