package service

import (
	"context"
	"sync/atomic"

	"semsearch/internal/domain"
)

// countingEmbedder forwards to an inner embedder and counts calls.
type countingEmbedder struct {
	domain.Embedder
	embeds  atomic.Int32
	batches atomic.Int32
	err     error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embeds.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Embedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Embedder.EmbedBatch(ctx, texts)
}

// mockIndex is a function-field mock; nil fields fall through to Inner.
type mockIndex struct {
	Inner domain.VectorIndex

	HasCollectionFn      func(ctx context.Context, name string) (bool, error)
	CreateCollectionFn   func(ctx context.Context, name string, dimension int) error
	DescribeCollectionFn func(ctx context.Context, name string) (domain.CollectionInfo, error)
	UpsertFn             func(ctx context.Context, name string, records []domain.Record) error
	SearchFn             func(ctx context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]domain.Hit, error)

	creates   atomic.Int32
	upserts   atomic.Int32
	describes atomic.Int32
	searches  atomic.Int32
}

func (m *mockIndex) HasCollection(ctx context.Context, name string) (bool, error) {
	if m.HasCollectionFn != nil {
		return m.HasCollectionFn(ctx, name)
	}
	return m.Inner.HasCollection(ctx, name)
}

func (m *mockIndex) CreateCollection(ctx context.Context, name string, dimension int) error {
	m.creates.Add(1)
	if m.CreateCollectionFn != nil {
		return m.CreateCollectionFn(ctx, name, dimension)
	}
	return m.Inner.CreateCollection(ctx, name, dimension)
}

func (m *mockIndex) DescribeCollection(ctx context.Context, name string) (domain.CollectionInfo, error) {
	m.describes.Add(1)
	if m.DescribeCollectionFn != nil {
		return m.DescribeCollectionFn(ctx, name)
	}
	return m.Inner.DescribeCollection(ctx, name)
}

func (m *mockIndex) Upsert(ctx context.Context, name string, records []domain.Record) error {
	m.upserts.Add(1)
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, name, records)
	}
	return m.Inner.Upsert(ctx, name, records)
}

func (m *mockIndex) Search(ctx context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]domain.Hit, error) {
	m.searches.Add(1)
	if m.SearchFn != nil {
		return m.SearchFn(ctx, name, vectors, limit, outputFields)
	}
	return m.Inner.Search(ctx, name, vectors, limit, outputFields)
}

func (m *mockIndex) DropCollection(ctx context.Context, name string) error {
	return m.Inner.DropCollection(ctx, name)
}

func (m *mockIndex) Close() error { return m.Inner.Close() }

// stubSearcher records the queries it receives.
type stubSearcher struct {
	calls []string
	topKs []int
	err   error
}

func (s *stubSearcher) Search(_ context.Context, q string, topK int) (domain.SearchResult, error) {
	s.calls = append(s.calls, q)
	s.topKs = append(s.topKs, topK)
	if s.err != nil {
		return domain.SearchResult{}, s.err
	}
	entries := make([]domain.Entry, topK)
	for i := range entries {
		entries[i] = domain.Entry{Rank: i + 1, ID: int64(i), Text: q}
	}
	return domain.SearchResult{Query: q, TopK: topK, Entries: entries}, nil
}
