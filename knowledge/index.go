package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/daybridge/daybridge/store"
)

// ErrRetrievalUnavailable indicates the embedding service could not be
// reached. Callers must treat empty retrieval as "no grounding available",
// never as a conversation-blocking failure.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// Embedder is the subset of the embedding service the index needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// EmbeddingStore persists chunk vectors across restarts, keyed by
// knowledge-base version.
type EmbeddingStore interface {
	UpsertKnowledgeEmbedding(ctx context.Context, upsert *store.KnowledgeEmbedding) (*store.KnowledgeEmbedding, error)
	ListKnowledgeEmbeddings(ctx context.Context, find *store.FindKnowledgeEmbedding) ([]*store.KnowledgeEmbedding, error)
	DeleteKnowledgeEmbeddings(ctx context.Context, version string) error
}

// ScoredChunk is a search hit with its similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float32
}

// Index is the embedding-backed retrieval index over a fixed chunk set.
type Index struct {
	chunks   []Chunk
	embedder Embedder
	store    EmbeddingStore
	version  string

	mu      sync.Mutex
	vectors map[string][]float32 // chunk id -> embedding, complete once ready
	ready   bool
}

// NewIndex creates an index over chunks. version is the knowledge-base
// version tag; cached vectors from any other version are invalid.
func NewIndex(chunks []Chunk, embedder Embedder, embeddingStore EmbeddingStore, version string) *Index {
	return &Index{
		chunks:   chunks,
		embedder: embedder,
		store:    embeddingStore,
		version:  version,
	}
}

// EnsureEmbeddings makes the full vector set available, generating and
// caching whatever the store does not already hold for the current
// version. A version mismatch invalidates every cached vector; vectors
// from different versions live in incompatible spaces and are never
// mixed. Any embedding failure aborts initialization:
// a partial embedding set is never served as if complete.
func (idx *Index) EnsureEmbeddings(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.ensureLocked(ctx)
}

func (idx *Index) ensureLocked(ctx context.Context) error {
	if idx.ready {
		return nil
	}
	if idx.embedder == nil {
		return fmt.Errorf("%w: no embedding service configured", ErrRetrievalUnavailable)
	}

	// Drop every vector not tagged with the current version.
	if err := idx.store.DeleteKnowledgeEmbeddings(ctx, idx.version); err != nil {
		return fmt.Errorf("invalidate stale embeddings: %w", err)
	}

	cached, err := idx.store.ListKnowledgeEmbeddings(ctx, &store.FindKnowledgeEmbedding{Version: &idx.version})
	if err != nil {
		return fmt.Errorf("list cached embeddings: %w", err)
	}

	vectors := make(map[string][]float32, len(idx.chunks))
	for _, embedding := range cached {
		if embedding.Model == idx.embedder.Model() {
			vectors[embedding.ChunkID] = embedding.Embedding
		}
	}

	missing := []Chunk{}
	for _, chunk := range idx.chunks {
		if _, ok := vectors[chunk.ID]; !ok {
			missing = append(missing, chunk)
		}
	}

	if len(missing) > 0 {
		inputs := make([]string, len(missing))
		for i, chunk := range missing {
			inputs[i] = chunk.EmbeddingInput()
		}

		generated, err := idx.embedder.EmbedBatch(ctx, inputs)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
		}
		if len(generated) != len(missing) {
			return fmt.Errorf("%w: got %d vectors for %d chunks", ErrRetrievalUnavailable, len(generated), len(missing))
		}

		now := time.Now().Unix()
		for i, chunk := range missing {
			if _, err := idx.store.UpsertKnowledgeEmbedding(ctx, &store.KnowledgeEmbedding{
				ChunkID:   chunk.ID,
				Version:   idx.version,
				Model:     idx.embedder.Model(),
				Embedding: generated[i],
				UpdatedTs: now,
			}); err != nil {
				return fmt.Errorf("cache embedding for %s: %w", chunk.ID, err)
			}
			vectors[chunk.ID] = generated[i]
		}

		slog.Info("knowledge: embeddings generated",
			"version", idx.version,
			"cached", len(cached),
			"generated", len(missing),
		)
	}

	idx.vectors = vectors
	idx.ready = true
	return nil
}

// Search returns the topK chunks most similar to query, highest first,
// ties broken by original chunk order. contextHints are appended to the
// query text before embedding; they are plain context, not a separate
// weighting term.
//
// When the embedding service is unreachable Search returns an empty set
// and logs a warning: the conversation proceeds ungrounded.
func (idx *Index) Search(ctx context.Context, query string, topK int, contextHints ...string) []ScoredChunk {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.ensureLocked(ctx); err != nil {
		slog.Warn("knowledge: search degraded to no grounding", "error", err)
		return []ScoredChunk{}
	}

	input := query
	if len(contextHints) > 0 {
		input = query + "\n" + strings.Join(contextHints, "\n")
	}

	queryVector, err := idx.embedder.Embed(ctx, input)
	if err != nil {
		slog.Warn("knowledge: query embedding failed, no grounding", "error", err)
		return []ScoredChunk{}
	}

	scored := make([]ScoredChunk, 0, len(idx.chunks))
	for _, chunk := range idx.chunks {
		vector, ok := idx.vectors[chunk.ID]
		if !ok {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: chunk, Score: cosineSimilarity(queryVector, vector)})
	}

	// Stable sort keeps original chunk order on score ties.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Invalidate forces the next search to re-check the cache; used by tests
// and by a knowledge-base reload.
func (idx *Index) Invalidate() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ready = false
	idx.vectors = nil
}
