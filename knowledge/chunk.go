// Package knowledge provides the retrieval subsystem: a chunked knowledge
// base with cached vector embeddings and cosine-similarity top-K search.
package knowledge

import (
	"math"
	"strings"
)

// Chunk is one retrievable knowledge-base passage.
type Chunk struct {
	ID       string
	Title    string
	Content  string
	Keywords []string
}

// EmbeddingInput is the text submitted to the embedding service for this
// chunk: title, keywords, and content concatenated.
func (c Chunk) EmbeddingInput() string {
	parts := []string{c.Title}
	if len(c.Keywords) > 0 {
		parts = append(parts, strings.Join(c.Keywords, ", "))
	}
	parts = append(parts, c.Content)
	return strings.Join(parts, "\n")
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
