package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"semsearch/internal/domain"
)

// Parallel splits EmbedBatch into chunks and encodes them on a worker pool.
// Output order always matches input order.
type Parallel struct {
	domain.Embedder
	pool      *ants.Pool
	chunkSize int
}

// NewParallel wraps inner with a pool of the given size. chunkSize bounds
// how many texts each worker sends to inner in one call.
func NewParallel(inner domain.Embedder, workers, chunkSize int) (*Parallel, error) {
	if workers < 1 {
		workers = 1
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	return &Parallel{Embedder: inner, pool: pool, chunkSize: chunkSize}, nil
}

// EmbedBatch fans chunks of texts out to the pool and returns the first error.
func (p *Parallel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= p.chunkSize {
		return p.Embedder.EmbedBatch(ctx, texts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += p.chunkSize {
		end := min(start+p.chunkSize, len(texts))
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vecs, err := p.Embedder.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			if len(vecs) != end-start {
				fail(fmt.Errorf("embedder %s returned %d vectors for %d texts", p.Name(), len(vecs), end-start))
				return
			}
			copy(out[start:end], vecs)
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding task: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the pool and closes the wrapped embedder if it holds resources.
func (p *Parallel) Close() error {
	p.pool.Release()
	return closeEmbedder(p.Embedder)
}

func closeEmbedder(e domain.Embedder) error {
	if c, ok := e.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
