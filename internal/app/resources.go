package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"semsearch/internal/config"
	"semsearch/internal/corpus"
	"semsearch/internal/domain"
	"semsearch/internal/embedding"
	"semsearch/internal/service"
	"semsearch/internal/vectorindex"
)

// Resources hands out the shared embedder and index, built once per process.
type Resources struct {
	cfg    *config.AppConfig
	logger *zap.Logger

	embedder *Lazy[domain.Embedder]
	index    *Lazy[domain.VectorIndex]

	mu   sync.Mutex
	boot *service.Bootstrapper
}

// NewResources prepares lazy constructors; nothing is connected yet.
func NewResources(cfg *config.AppConfig, logger *zap.Logger) *Resources {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resources{cfg: cfg, logger: logger}
	r.embedder = NewLazy(func(ctx context.Context) (domain.Embedder, error) {
		return embedding.New(ctx, cfg.Embedder, logger.Named("embedder"))
	})
	r.index = NewLazy(func(ctx context.Context) (domain.VectorIndex, error) {
		return vectorindex.New(ctx, cfg.VectorIndex, logger.Named("index"))
	})
	return r
}

// newResourcesWith builds Resources over fixed constructors.
func newResourcesWith(cfg *config.AppConfig, logger *zap.Logger,
	newEmbedder func(context.Context) (domain.Embedder, error),
	newIndex func(context.Context) (domain.VectorIndex, error),
) *Resources {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resources{cfg: cfg, logger: logger, embedder: NewLazy(newEmbedder), index: NewLazy(newIndex)}
}

// Config returns the application configuration.
func (r *Resources) Config() *config.AppConfig { return r.cfg }

// Logger returns the root logger.
func (r *Resources) Logger() *zap.Logger { return r.logger }

// Embedder returns the shared embedder.
func (r *Resources) Embedder(ctx context.Context) (domain.Embedder, error) {
	return r.embedder.Get(ctx)
}

// Index returns the shared vector index.
func (r *Resources) Index(ctx context.Context) (domain.VectorIndex, error) {
	return r.index.Get(ctx)
}

// Corpus returns the configured documents, or the built-in corpus.
func (r *Resources) Corpus() []string {
	if len(r.cfg.Corpus.Documents) > 0 {
		return r.cfg.Corpus.Documents
	}
	return corpus.Default
}

// Collection returns the configured collection name.
func (r *Resources) Collection() string {
	if r.cfg.Search.Collection != "" {
		return r.cfg.Search.Collection
	}
	return corpus.DefaultCollection
}

// Services bootstraps the collection and returns a search service bound to it.
func (r *Resources) Services(ctx context.Context) (*service.SearchService, service.Readiness, error) {
	emb, err := r.Embedder(ctx)
	if err != nil {
		return nil, 0, err
	}
	idx, err := r.Index(ctx)
	if err != nil {
		return nil, 0, err
	}
	r.mu.Lock()
	if r.boot == nil {
		r.boot = service.NewBootstrapper(emb, idx, service.WithLogger(r.logger))
	}
	boot := r.boot
	r.mu.Unlock()

	readiness, err := boot.EnsureCollection(ctx, r.Collection(), r.Corpus())
	if err != nil {
		return nil, 0, err
	}
	return service.NewSearchService(emb, idx, r.Collection(), service.WithLogger(r.logger)), readiness, nil
}

// NewSession starts a query session sized to the configured corpus.
func (r *Resources) NewSession(searcher domain.Searcher) *service.Session {
	return service.NewSession(searcher, len(r.Corpus()),
		service.WithTopK(r.cfg.Search.DefaultTopK),
		service.WithMaxTopK(r.cfg.Search.MaxTopK),
		service.WithSessionLogger(r.logger),
	)
}

// Close releases whatever was constructed.
func (r *Resources) Close() error {
	var errs []error
	if idx, ok := r.index.Peek(); ok {
		errs = append(errs, idx.Close())
	}
	if emb, ok := r.embedder.Peek(); ok {
		errs = append(errs, embedding.Close(emb))
	}
	return errors.Join(errs...)
}
