// Package ollama embeds text with a local Ollama server through langchaingo.
package ollama

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"semsearch/internal/domain"
)

// Config selects the Ollama server and embedding model.
type Config struct {
	ServerURL string
	Model     string
}

// Embedder implements domain.Embedder on top of a langchaingo embedder.
type Embedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
	logger    *zap.Logger
}

var _ domain.Embedder = (*Embedder)(nil)

// New connects to Ollama and embeds one probe text to learn the vector width.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("ollama model is required")
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	inner, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return newEmbedder(ctx, inner, cfg.Model, logger)
}

// newEmbedder wraps an existing langchaingo embedder.
func newEmbedder(ctx context.Context, inner embeddings.Embedder, model string, logger *zap.Logger) (*Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Embedder{
		embedder: inner,
		model:    model,
		logger:   logger.With(zap.String("component", "ollama-embedder"), zap.String("model", model)),
	}
	probe, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("probe embedding dimension: %w", err)
	}
	e.dimension = len(probe)
	return e, nil
}

func (e *Embedder) Name() string { return "ollama:" + e.model }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed generates a vector embedding for a single text string.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", zap.Int("length", len(text)))

	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to generate embedding", zap.Error(err))
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(vec) == 0 {
		return nil, errors.New("ollama embed: empty embedding")
	}
	return vec, nil
}

// EmbedBatch generates vector embeddings for multiple texts in one request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", zap.Int("count", len(texts)))

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", zap.Int("count", len(texts)), zap.Error(err))
		return nil, fmt.Errorf("ollama embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embed batch: got %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}
