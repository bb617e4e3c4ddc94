package indexer

import "context"

// Chunk is a bounded-size prose fragment extracted from a document,
// the unit of retrieval. Immutable once scored.
type Chunk struct {
	Text    string
	Section string
	Source  string
}

// Embedder maps chunk texts to fixed-dimension dense vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
