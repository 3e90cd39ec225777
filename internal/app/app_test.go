package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/config"
	"semsearch/internal/corpus"
	"semsearch/internal/domain"
	"semsearch/internal/embedding/hashing"
	"semsearch/internal/service"
	"semsearch/internal/vectorindex/memory"
)

func TestLazyConstructsOnce(t *testing.T) {
	var calls atomic.Int32
	l := NewLazy(func(context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestLazyRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	l := NewLazy(func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("unreachable")
		}
		return "ok", nil
	})

	_, err := l.Get(context.Background())
	require.Error(t, err)
	_, ok := l.Peek()
	assert.False(t, ok)

	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), calls.Load())
}

func testResources(t *testing.T, cfg *config.AppConfig) (*Resources, *atomic.Int32) {
	t.Helper()
	var built atomic.Int32
	r := newResourcesWith(cfg, nil,
		func(context.Context) (domain.Embedder, error) {
			built.Add(1)
			return hashing.New(hashing.DefaultDimension)
		},
		func(context.Context) (domain.VectorIndex, error) {
			built.Add(1)
			return memory.NewStorage(), nil
		},
	)
	return r, &built
}

func defaults() *config.AppConfig {
	return &config.AppConfig{Search: config.SearchConfig{DefaultTopK: 3, MaxTopK: 8}}
}

func TestServicesBootstrapsOnce(t *testing.T) {
	r, built := testResources(t, defaults())
	ctx := context.Background()

	_, readiness, err := r.Services(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.Ready, readiness)

	svc, readiness, err := r.Services(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.AlreadyReady, readiness)
	assert.Equal(t, corpus.DefaultCollection, svc.Collection())
	assert.Equal(t, int32(2), built.Load())
	assert.NoError(t, r.Close())
}

func TestCorpusAndCollectionOverrides(t *testing.T) {
	cfg := defaults()
	cfg.Corpus.Documents = []string{"one", "two"}
	cfg.Search.Collection = "custom"
	r, _ := testResources(t, cfg)

	assert.Equal(t, []string{"one", "two"}, r.Corpus())
	assert.Equal(t, "custom", r.Collection())

	s := r.NewSession(nil)
	assert.Equal(t, 2, s.TopKLimit())
	assert.Equal(t, 2, s.TopK())
}

func TestCloseWithoutConstruction(t *testing.T) {
	r, built := testResources(t, defaults())
	assert.NoError(t, r.Close())
	assert.Zero(t, built.Load())
}
