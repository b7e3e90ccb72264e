package sqlite

import (
	"context"
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/daybridge/daybridge/store"
)

// Vectors are stored as little-endian float32 BLOBs. Similarity is computed
// in the application layer; a single-user knowledge base is small enough
// that a vector index buys nothing.

func float32ArrayToBLOB(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.Errorf("invalid embedding BLOB length: %d", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

func (d *DB) UpsertKnowledgeEmbedding(ctx context.Context, upsert *store.KnowledgeEmbedding) (*store.KnowledgeEmbedding, error) {
	stmt := `INSERT INTO knowledge_embedding (chunk_id, version, model, embedding, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chunk_id, version, model) DO UPDATE SET
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
		RETURNING id, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.ChunkID,
		upsert.Version,
		upsert.Model,
		float32ArrayToBLOB(upsert.Embedding),
		upsert.UpdatedTs,
	).Scan(&upsert.ID, &upsert.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert knowledge embedding")
	}

	return upsert, nil
}

func (d *DB) ListKnowledgeEmbeddings(ctx context.Context, find *store.FindKnowledgeEmbedding) ([]*store.KnowledgeEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ChunkID != nil {
		where, args = append(where, "chunk_id = ?"), append(args, *find.ChunkID)
	}
	if find.Version != nil {
		where, args = append(where, "version = ?"), append(args, *find.Version)
	}

	query := `SELECT id, chunk_id, version, model, embedding, updated_ts
		FROM knowledge_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list knowledge embeddings")
	}
	defer rows.Close()

	list := []*store.KnowledgeEmbedding{}
	for rows.Next() {
		var embedding store.KnowledgeEmbedding
		var blob []byte
		if err := rows.Scan(
			&embedding.ID,
			&embedding.ChunkID,
			&embedding.Version,
			&embedding.Model,
			&blob,
			&embedding.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan knowledge embedding")
		}
		vec, err := blobToFloat32Array(blob)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode knowledge embedding")
		}
		embedding.Embedding = vec
		list = append(list, &embedding)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// DeleteKnowledgeEmbeddings removes every vector NOT tagged with version.
// Passing the current knowledge-base version therefore clears all stale
// generations at once.
func (d *DB) DeleteKnowledgeEmbeddings(ctx context.Context, version string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM knowledge_embedding WHERE version <> ?`, version); err != nil {
		return errors.Wrap(err, "failed to delete knowledge embeddings")
	}
	return nil
}
