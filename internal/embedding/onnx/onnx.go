//go:build cgo

// Package onnx runs a sentence-transformer (all-MiniLM-L6-v2 by default)
// through ONNX Runtime. It requires cgo and the onnxruntime shared library.
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"semsearch/internal/domain"
)

// Config locates the model files.
type Config struct {
	ModelPath   string
	VocabPath   string
	LibraryPath string
	MaxSeqLen   int
	Dimension   int
}

var initOnce struct {
	sync.Once
	err error
}

// Embedder runs inference one text at a time over pre-allocated tensors.
type Embedder struct {
	tokenizer *WordPiece
	session   *ort.AdvancedSession
	dimension int
	maxSeqLen int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

var _ domain.Embedder = (*Embedder)(nil)

// New loads the vocabulary and creates the inference session.
func New(cfg Config) (*Embedder, error) {
	tok, err := LoadVocab(cfg.VocabPath)
	if err != nil {
		return nil, err
	}
	if cfg.MaxSeqLen <= 1 || cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid onnx shape: max_seq_len %d, dimension %d", cfg.MaxSeqLen, cfg.Dimension)
	}

	initOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		initOnce.err = ort.InitializeEnvironment()
	})
	if initOnce.err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", initOnce.err)
	}

	e := &Embedder{tokenizer: tok, dimension: cfg.Dimension, maxSeqLen: cfg.MaxSeqLen}
	seq := int64(cfg.MaxSeqLen)
	if e.inputIDs, err = ort.NewEmptyTensor[int64](ort.NewShape(1, seq)); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMask, err = ort.NewEmptyTensor[int64](ort.NewShape(1, seq)); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.tokenTypeIDs, err = ort.NewEmptyTensor[int64](ort.NewShape(1, seq)); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if e.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, seq, int64(cfg.Dimension))); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask, e.tokenTypeIDs},
		[]ort.ArbitraryTensor{e.output},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return e, nil
}

func (e *Embedder) Name() string { return "onnx" }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed tokenizes text, runs the model and mean-pools the hidden states.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	mask := e.attentionMask.GetData()
	e.tokenizer.Encode(text, e.inputIDs.GetData(), mask)
	clear(e.tokenTypeIDs.GetData())

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return meanPool(e.output.GetData(), mask, e.dimension), nil
}

// EmbedBatch calls Embed for each text.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Close destroys the session and tensors.
func (e *Embedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.attentionMask, e.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if e.output != nil {
		_ = e.output.Destroy()
	}
	e.inputIDs, e.attentionMask, e.tokenTypeIDs, e.output = nil, nil, nil, nil
	return err
}
