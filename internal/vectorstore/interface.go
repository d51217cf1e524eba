package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid vectorstore configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrConnectionFailed indicates the backing store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrStoreClosed is returned for operations on a closed store.
	ErrStoreClosed = errors.New("vector store is closed")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations. Implementations are
// safe for concurrent use. Each Store instance manages a single collection.
//
// Implementations:
//   - ChromemStore: embedded chromem-go, persisted to a directory (default)
//   - QdrantStore: external Qdrant reached over gRPC
type Store interface {
	// AddDocuments embeds and stores documents. A document whose ID already
	// exists is overwritten. Returns the stored IDs in input order.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k documents most similar to query, highest
	// similarity first. Filters restrict results to documents whose metadata
	// matches every given key/value exactly. An empty store yields an empty
	// result, not an error.
	Search(ctx context.Context, query string, k int, filters map[string]string) ([]SearchResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Clear removes every document from the collection. The store remains
	// usable afterwards.
	Clear(ctx context.Context) error

	// Info describes the collection.
	Info(ctx context.Context) (CollectionInfo, error)

	// Close releases resources. Safe to call twice.
	Close() error
}

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of vectors in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}
