package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"semsearch/internal/domain"
	"semsearch/internal/metrics"
)

// SearchService embeds a query, asks the index for its nearest neighbors and
// turns the hits into a ranked SearchResult.
type SearchService struct {
	embedder   domain.Embedder
	index      domain.VectorIndex
	collection string
	logger     *zap.Logger

	mu        sync.RWMutex
	dimension int
}

var _ domain.Searcher = (*SearchService)(nil)

// NewSearchService creates a search service bound to one collection.
func NewSearchService(embedder domain.Embedder, index domain.VectorIndex, collection string, opts ...Option) *SearchService {
	o := applyOptions(opts)
	return &SearchService{embedder: embedder, index: index, collection: collection, logger: o.logger}
}

// Collection returns the collection this service searches.
func (s *SearchService) Collection() string { return s.collection }

// Search returns up to topK entries nearest to queryText. The caller trims and
// validates queryText and clamps topK; both are passed through unchanged.
// Entries keep the order the index returned them in.
func (s *SearchService) Search(ctx context.Context, queryText string, topK int) (domain.SearchResult, error) {
	start := time.Now()
	res, err := s.search(ctx, queryText, topK)
	metrics.SearchDuration.WithLabelValues(s.collection).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(s.collection, "error").Inc()
		s.logger.Warn("search failed",
			zap.String("collection", s.collection),
			zap.String("query", queryText),
			zap.Error(err),
		)
		return domain.SearchResult{}, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(s.collection, "success").Inc()
	s.logger.Debug("search completed",
		zap.String("query", queryText),
		zap.Int("top_k", topK),
		zap.Int("hits", len(res.Entries)),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (s *SearchService) search(ctx context.Context, queryText string, topK int) (domain.SearchResult, error) {
	dim, err := s.collectionDimension(ctx)
	if err != nil {
		return domain.SearchResult{}, err
	}

	vec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return domain.SearchResult{}, unavailable("embed query", err)
	}
	if len(vec) != dim {
		return domain.SearchResult{}, fmt.Errorf("%w: query vector has dimension %d, collection %q has %d",
			domain.ErrDimensionMismatch, len(vec), s.collection, dim)
	}

	hits, err := s.index.Search(ctx, s.collection, [][]float32{vec}, topK, []string{domain.FieldText})
	if err != nil {
		if errors.Is(err, domain.ErrCollectionAbsent) {
			s.forgetDimension()
			return domain.SearchResult{}, fmt.Errorf("search %q: %w", s.collection, err)
		}
		return domain.SearchResult{}, unavailable("search index", err)
	}

	res := domain.SearchResult{Query: queryText, TopK: topK}
	if len(hits) == 0 {
		return res, nil
	}
	res.Entries = make([]domain.Entry, 0, len(hits[0]))
	for i, h := range hits[0] {
		res.Entries = append(res.Entries, domain.Entry{
			Rank:       i + 1,
			ID:         h.ID,
			Text:       h.Entity[domain.FieldText],
			Distance:   h.Distance,
			Similarity: roundTenth(Similarity(h.Distance)),
		})
	}
	return res, nil
}

// collectionDimension describes the collection once; a collection's
// dimension is fixed at creation so the value is cached afterwards.
func (s *SearchService) collectionDimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if dim > 0 {
		return dim, nil
	}

	info, err := s.index.DescribeCollection(ctx, s.collection)
	if err != nil {
		if errors.Is(err, domain.ErrCollectionAbsent) {
			return 0, fmt.Errorf("search %q: %w", s.collection, err)
		}
		return 0, unavailable("describe collection", err)
	}

	s.mu.Lock()
	s.dimension = info.Dimension
	s.mu.Unlock()
	return info.Dimension, nil
}

func (s *SearchService) forgetDimension() {
	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
}
