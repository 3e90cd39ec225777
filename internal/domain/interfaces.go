package domain

import "context"

// Embedder converts free text into fixed-dimension vectors.
// Implementations must be safe for concurrent use once constructed.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex persists vectors keyed by id and answers nearest-neighbor queries.
type VectorIndex interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	// CreateCollection returns ErrCollectionExists if name is already taken.
	CreateCollection(ctx context.Context, name string, dimension int) error
	// DescribeCollection returns ErrCollectionAbsent if name does not exist.
	DescribeCollection(ctx context.Context, name string) (CollectionInfo, error)
	// Upsert stores all records or none of them.
	Upsert(ctx context.Context, name string, records []Record) error
	// Search returns, for each query vector, up to limit hits ordered by
	// ascending distance. Only the requested entity fields are populated.
	Search(ctx context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]Hit, error)
	DropCollection(ctx context.Context, name string) error
	Close() error
}

// Searcher is the query-side contract consumed by sessions and presenters.
type Searcher interface {
	Search(ctx context.Context, queryText string, topK int) (SearchResult, error)
}
