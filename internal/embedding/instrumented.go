package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"semsearch/internal/domain"
	"semsearch/internal/metrics"
)

// Instrumented records call counts and latency for every embedding call.
type Instrumented struct {
	domain.Embedder
	logger *zap.Logger
}

// NewInstrumented wraps inner with metrics and debug logging.
func NewInstrumented(inner domain.Embedder, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{Embedder: inner, logger: logger}
}

func (i *Instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := i.Embedder.Embed(ctx, text)
	i.observe("query", start, 1, err)
	return vec, err
}

func (i *Instrumented) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.Embedder.EmbedBatch(ctx, texts)
	i.observe("batch", start, len(texts), err)
	return vecs, err
}

// Close closes the wrapped embedder if it holds resources.
func (i *Instrumented) Close() error {
	return closeEmbedder(i.Embedder)
}

func (i *Instrumented) observe(kind string, start time.Time, n int, err error) {
	took := time.Since(start)
	name := i.Name()
	metrics.EmbeddingDuration.WithLabelValues(name, kind).Observe(took.Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(name, kind, status).Inc()
	if err != nil {
		i.logger.Warn("embedding failed",
			zap.String("embedder", name),
			zap.String("kind", kind),
			zap.Int("texts", n),
			zap.Error(err),
		)
		return
	}
	i.logger.Debug("embedding completed",
		zap.String("embedder", name),
		zap.String("kind", kind),
		zap.Int("texts", n),
		zap.Duration("took", took),
	)
}
