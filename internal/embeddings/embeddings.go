package embeddings

import (
	"context"
	"math"
)

// Vector is a fixed-dimension embedding vector.
type Vector []float32

// Embedder defines the embedding service interface. The same model must be
// used for ingestion and for queries.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// Cosine computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
func Cosine(a, b Vector) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
