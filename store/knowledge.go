package store

// KnowledgeEmbedding is a cached chunk embedding keyed by chunk id and
// knowledge-base version. A vector is only valid while its version matches
// the current build's knowledge-base version; on mismatch the whole set is
// deleted and regenerated, never partially reused.
type KnowledgeEmbedding struct {
	ID        int32
	ChunkID   string
	Version   string
	Model     string
	Embedding []float32
	UpdatedTs int64
}

// FindKnowledgeEmbedding filters ListKnowledgeEmbeddings.
type FindKnowledgeEmbedding struct {
	ChunkID *string
	Version *string
}
