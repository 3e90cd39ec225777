package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/flat"
)

// Storage is an in-process vector index using brute-force cosine distance.
// Nothing is persisted; it serves tests and throwaway runs.
type Storage struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimension int
	records   map[int64]flat.Candidate
}

var _ domain.VectorIndex = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{collections: make(map[string]*collection)}
}

func (s *Storage) HasCollection(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Storage) CreateCollection(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionExists)
	}
	s.collections[name] = &collection{dimension: dimension, records: make(map[int64]flat.Candidate)}
	return nil
}

func (s *Storage) DescribeCollection(_ context.Context, name string) (domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.CollectionInfo{}, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	return domain.CollectionInfo{Name: name, Dimension: c.dimension, Count: len(c.records)}, nil
}

func (s *Storage) Upsert(_ context.Context, name string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	// Validate everything first so a bad record leaves the collection untouched.
	for _, r := range records {
		if len(r.Vector) != c.dimension {
			return fmt.Errorf("record %d: %w", r.ID, &flat.DimensionError{Got: len(r.Vector), Want: c.dimension})
		}
	}
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		c.records[r.ID] = flat.Candidate{ID: r.ID, Vector: vec, Text: r.Text}
	}
	return nil
}

func (s *Storage) Search(_ context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	if err := flat.CheckDimensions(vectors, c.dimension); err != nil {
		return nil, err
	}
	candidates := make([]flat.Candidate, 0, len(c.records))
	for _, r := range c.records {
		candidates = append(candidates, r)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	out := make([][]domain.Hit, len(vectors))
	for i, v := range vectors {
		out[i] = flat.Rank(v, candidates, limit, outputFields)
	}
	return out, nil
}

func (s *Storage) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	delete(s.collections, name)
	return nil
}

func (s *Storage) Close() error { return nil }
