// Package embedding builds the configured domain.Embedder and its decorators.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"semsearch/internal/config"
	"semsearch/internal/domain"
	"semsearch/internal/embedding/hashing"
	"semsearch/internal/embedding/ollama"
	"semsearch/internal/embedding/onnx"
	"semsearch/internal/embedding/openai"
)

// New creates the embedder selected by cfg.Type, wrapped with metrics and,
// when cfg.Workers > 1, a worker pool for batch encoding.
func New(ctx context.Context, cfg config.EmbedderConfig, logger *zap.Logger) (domain.Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		inner     domain.Embedder
		chunkSize = 8
		err       error
	)
	switch cfg.Type {
	case "", "hashing":
		dim := cfg.Dimension
		if dim == 0 {
			dim = hashing.DefaultDimension
		}
		inner, err = hashing.New(dim)
	case "onnx":
		if cfg.ONNX == nil {
			return nil, fmt.Errorf("onnx config is not set")
		}
		inner, err = onnx.New(onnx.Config{
			ModelPath:   cfg.ONNX.ModelPath,
			VocabPath:   cfg.ONNX.VocabPath,
			LibraryPath: cfg.ONNX.LibraryPath,
			MaxSeqLen:   cfg.ONNX.MaxSeqLen,
			Dimension:   cfg.ONNX.Dimension,
		})
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai config is not set")
		}
		chunkSize = cfg.OpenAI.BatchSize
		inner, err = openai.NewClient(ctx, openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			BatchSize:  cfg.OpenAI.BatchSize,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama config is not set")
		}
		inner, err = ollama.New(ctx, ollama.Config{ServerURL: cfg.Ollama.ServerURL, Model: cfg.Ollama.Model}, logger)
	default:
		return nil, fmt.Errorf("unknown embedder type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create %s embedder: %w", domain.ErrServiceUnavailable, cfg.Type, err)
	}

	logger.Info("embedder ready",
		zap.String("embedder", inner.Name()),
		zap.Int("dimension", inner.Dimension()),
		zap.Int("workers", cfg.Workers),
	)

	if cfg.Workers > 1 {
		inner, err = NewParallel(inner, cfg.Workers, chunkSize)
		if err != nil {
			return nil, err
		}
	}
	return NewInstrumented(inner, logger), nil
}

// Close releases embedder resources such as worker pools and ONNX sessions.
func Close(e domain.Embedder) error {
	return closeEmbedder(e)
}
