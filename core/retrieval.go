package core

import "context"

// Chunk is one ranked piece of retrieved background context.
type Chunk struct {
	Source   string            `json:"source"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Embedder converts text into an opaque embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeRetriever is the knowledge retrieval collaborator: embedding plus
// similarity search over the ingested background corpus. Implementations wrap
// a vector index; failures surface as CollaboratorError with kind Timeout or
// IndexUnavailable.
type KnowledgeRetriever interface {
	Embedder

	// Search returns the topK chunks most similar to the query, best first.
	Search(ctx context.Context, query string, topK int) ([]Chunk, error)
}
