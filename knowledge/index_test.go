package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybridge/daybridge/store"
)

// mockEmbedder returns fixed vectors per text prefix and counts calls.
type mockEmbedder struct {
	vectors   map[string][]float32
	fallback  []float32
	batchErr  error
	callCount int
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		vectors:  map[string][]float32{},
		fallback: []float32{0.1, 0.1, 0.1},
	}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	m.callCount++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.fallback
		for prefix, vec := range m.vectors {
			if len(text) >= len(prefix) && text[:len(prefix)] == prefix {
				out[i] = vec
			}
		}
	}
	return out, nil
}

func (m *mockEmbedder) Model() string { return "mock-embed" }

// memStore is an in-memory EmbeddingStore.
type memStore struct {
	rows []*store.KnowledgeEmbedding
}

func (s *memStore) UpsertKnowledgeEmbedding(_ context.Context, upsert *store.KnowledgeEmbedding) (*store.KnowledgeEmbedding, error) {
	for _, row := range s.rows {
		if row.ChunkID == upsert.ChunkID && row.Version == upsert.Version && row.Model == upsert.Model {
			row.Embedding = upsert.Embedding
			return row, nil
		}
	}
	s.rows = append(s.rows, upsert)
	return upsert, nil
}

func (s *memStore) ListKnowledgeEmbeddings(_ context.Context, find *store.FindKnowledgeEmbedding) ([]*store.KnowledgeEmbedding, error) {
	out := []*store.KnowledgeEmbedding{}
	for _, row := range s.rows {
		if find.Version != nil && row.Version != *find.Version {
			continue
		}
		if find.ChunkID != nil && row.ChunkID != *find.ChunkID {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *memStore) DeleteKnowledgeEmbeddings(_ context.Context, version string) error {
	kept := s.rows[:0]
	for _, row := range s.rows {
		if row.Version == version {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

func testChunks() []Chunk {
	return []Chunk{
		{ID: "kb#buffers", Title: "Buffers", Content: "Leave gaps between meetings."},
		{ID: "kb#recruiting", Title: "Recruiting", Content: "Prepare for info sessions."},
		{ID: "kb#study", Title: "Study", Content: "Pomodoro blocks work well."},
	}
}

func TestIndex_EnsureEmbeddingsCachesVectors(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder()
	persistence := &memStore{}

	index := NewIndex(testChunks(), embedder, persistence, "v1")
	require.NoError(t, index.EnsureEmbeddings(ctx))
	assert.Len(t, persistence.rows, 3)
	assert.Equal(t, 1, embedder.callCount)

	// A fresh index over the same store reuses the cache: no new batch call.
	second := NewIndex(testChunks(), embedder, persistence, "v1")
	require.NoError(t, second.EnsureEmbeddings(ctx))
	assert.Equal(t, 1, embedder.callCount)
}

func TestIndex_VersionMismatchInvalidatesEverything(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder()
	persistence := &memStore{}

	first := NewIndex(testChunks(), embedder, persistence, "v1")
	require.NoError(t, first.EnsureEmbeddings(ctx))
	require.Len(t, persistence.rows, 3)

	// Bumping the version clears 100% of the old vectors and regenerates.
	second := NewIndex(testChunks(), embedder, persistence, "v2")
	require.NoError(t, second.EnsureEmbeddings(ctx))

	assert.Len(t, persistence.rows, 3)
	for _, row := range persistence.rows {
		assert.Equal(t, "v2", row.Version)
	}
	assert.Equal(t, 2, embedder.callCount)
}

func TestIndex_EmbeddingFailureAbortsInitialization(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder()
	embedder.batchErr = errors.New("connection refused")
	persistence := &memStore{}

	index := NewIndex(testChunks(), embedder, persistence, "v1")
	err := index.EnsureEmbeddings(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.Empty(t, persistence.rows)
}

func TestIndex_SearchRanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder()
	// Query vector aligns with the recruiting chunk, is orthogonal to study.
	embedder.vectors["Buffers"] = []float32{1, 0, 0}
	embedder.vectors["Recruiting"] = []float32{0, 1, 0}
	embedder.vectors["Study"] = []float32{0, 0, 1}
	embedder.vectors["info sessions"] = []float32{0.1, 0.9, 0}

	index := NewIndex(testChunks(), embedder, &memStore{}, "v1")
	results := index.Search(ctx, "info sessions", 2)

	require.Len(t, results, 2)
	assert.Equal(t, "kb#recruiting", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestIndex_SearchTiesKeepChunkOrder(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder() // every vector identical: all scores tie

	index := NewIndex(testChunks(), embedder, &memStore{}, "v1")
	results := index.Search(ctx, "anything", 3)

	require.Len(t, results, 3)
	assert.Equal(t, "kb#buffers", results[0].ID)
	assert.Equal(t, "kb#recruiting", results[1].ID)
	assert.Equal(t, "kb#study", results[2].ID)
}

func TestIndex_SearchDegradesToEmptyWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder()
	embedder.batchErr = errors.New("dns failure")

	index := NewIndex(testChunks(), embedder, &memStore{}, "v1")
	results := index.Search(ctx, "anything", 3)
	assert.Empty(t, results)
}
