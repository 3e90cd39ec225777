package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"semsearch/internal/domain"
	"semsearch/internal/metrics"
)

// Readiness reports what EnsureCollection did.
type Readiness int

const (
	// Ready means the collection was created and populated by this call.
	Ready Readiness = iota + 1
	// AlreadyReady means the collection existed and nothing was written.
	AlreadyReady
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "created"
	case AlreadyReady:
		return "already_ready"
	default:
		return "unknown"
	}
}

// Bootstrapper loads a corpus into a vector index exactly once per collection.
type Bootstrapper struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	logger   *zap.Logger
	group    singleflight.Group
}

// NewBootstrapper creates a bootstrapper over the given embedder and index.
func NewBootstrapper(embedder domain.Embedder, index domain.VectorIndex, opts ...Option) *Bootstrapper {
	o := applyOptions(opts)
	return &Bootstrapper{embedder: embedder, index: index, logger: o.logger}
}

// EnsureCollection creates and populates name from docs unless it already
// exists. Concurrent callers for the same name share one creation; callers
// arriving afterwards see the collection and return AlreadyReady.
func (b *Bootstrapper) EnsureCollection(ctx context.Context, name string, docs []string) (Readiness, error) {
	v, err, _ := b.group.Do(name, func() (any, error) {
		return b.ensure(ctx, name, docs)
	})
	if err != nil {
		metrics.BootstrapTotal.WithLabelValues(name, "error").Inc()
		return 0, err
	}
	r := v.(Readiness)
	metrics.BootstrapTotal.WithLabelValues(name, r.String()).Inc()
	return r, nil
}

func (b *Bootstrapper) ensure(ctx context.Context, name string, docs []string) (Readiness, error) {
	exists, err := b.index.HasCollection(ctx, name)
	if err != nil {
		return 0, unavailable("check collection", err)
	}
	if exists {
		b.logger.Debug("collection already loaded", zap.String("collection", name))
		return AlreadyReady, nil
	}

	dim := b.embedder.Dimension()
	if err := b.index.CreateCollection(ctx, name, dim); err != nil {
		if errors.Is(err, domain.ErrCollectionExists) {
			// Another process won the race between the check and the create.
			b.logger.Info("collection created concurrently", zap.String("collection", name))
			return AlreadyReady, nil
		}
		return 0, unavailable("create collection", err)
	}
	if len(docs) == 0 {
		b.logger.Info("created empty collection", zap.String("collection", name), zap.Int("dimension", dim))
		return Ready, nil
	}

	vectors, err := b.embedder.EmbedBatch(ctx, docs)
	if err != nil {
		return 0, unavailable("embed corpus", err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("%w: embedder %s returned %d vectors for %d documents",
			domain.ErrServiceUnavailable, b.embedder.Name(), len(vectors), len(docs))
	}

	records := make([]domain.Record, len(docs))
	for i, doc := range docs {
		if len(vectors[i]) != dim {
			return 0, fmt.Errorf("%w: document %d has dimension %d, collection %q expects %d",
				domain.ErrDimensionMismatch, i, len(vectors[i]), name, dim)
		}
		records[i] = domain.Record{ID: int64(i), Vector: vectors[i], Text: doc}
	}
	if err := b.index.Upsert(ctx, name, records); err != nil {
		b.logger.Error("corpus upsert failed", zap.String("collection", name), zap.Error(err))
		return 0, fmt.Errorf("%w: collection %q: %w", domain.ErrBatchInsertFailed, name, err)
	}

	b.logger.Info("collection loaded",
		zap.String("collection", name),
		zap.Int("documents", len(records)),
		zap.Int("dimension", dim),
		zap.String("embedder", b.embedder.Name()),
	)
	return Ready, nil
}
