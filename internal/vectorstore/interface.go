package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks sage/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// ScrolledPoint represents a point returned by a paged scroll.
type ScrolledPoint struct {
	PointID string
	Meta    map[string]any
}

// SearchParams controls a similarity query.
type SearchParams struct {
	// K is the number of results to return. Must be positive.
	K int
	// Filters are exact-match payload conditions (string or integer values).
	Filters map[string]any
	// HnswEF optionally tunes search quality. Zero means store default.
	HnswEF uint64
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// EnsureCollection creates the collection if absent and validates the
	// vector size if present. hnswM tunes the index graph; zero keeps the
	// store default.
	EnsureCollection(ctx context.Context, collection string, vectorSize int, hnswM int) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// DropCollection removes a collection and all of its points.
	DropCollection(ctx context.Context, collection string) error

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search with optional filters.
	Search(ctx context.Context, collection string, query []float32, params SearchParams) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// Scroll enumerates points matching the filters, without scoring.
	Scroll(ctx context.Context, collection string, filters map[string]any, limit int) ([]ScrolledPoint, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (uint64, error)
}
