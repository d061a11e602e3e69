package search

import "errors"

var (
	// ErrStoreRequired is returned when an article store is not provided.
	ErrStoreRequired = errors.New("article store required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
