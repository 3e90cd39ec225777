//go:build !cgo

package onnx

import (
	"context"
	"errors"
)

var errNoCgo = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// Config locates the model files.
type Config struct {
	ModelPath   string
	VocabPath   string
	LibraryPath string
	MaxSeqLen   int
	Dimension   int
}

// Embedder stub type when built without CGO (see onnx.go for real implementation).
type Embedder struct{}

// New returns an error when built without CGO.
func New(Config) (*Embedder, error) { return nil, errNoCgo }

func (e *Embedder) Name() string   { return "onnx" }
func (e *Embedder) Dimension() int { return 0 }
func (e *Embedder) Close() error   { return nil }

func (e *Embedder) Embed(context.Context, string) ([]float32, error) { return nil, errNoCgo }

func (e *Embedder) EmbedBatch(context.Context, []string) ([][]float32, error) { return nil, errNoCgo }
