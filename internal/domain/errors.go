package domain

import "errors"

var (
	// ErrServiceUnavailable means the embedding or index backend could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDimensionMismatch means a vector's dimension disagrees with its collection.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrBatchInsertFailed means the bootstrap upsert failed after embeddings were computed.
	ErrBatchInsertFailed = errors.New("batch insert failed")

	// ErrCollectionAbsent means the collection has not been bootstrapped.
	ErrCollectionAbsent = errors.New("collection absent")

	// ErrCollectionExists is returned by CreateCollection when the name is taken.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrEmptyQuery means the query text was empty after trimming.
	ErrEmptyQuery = errors.New("empty query")
)
