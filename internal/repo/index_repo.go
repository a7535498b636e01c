package repo

import (
	"context"
	"database/sql"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

const ChunkVectorIndexName = "idx_rag_chunks_embedding_hnsw"

type IndexRepo struct {
	db *sql.DB
}

func NewIndexRepo(db *sql.DB) *IndexRepo {
	return &IndexRepo{db: db}
}

func (r *IndexRepo) Exists(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE tablename = 'rag_chunks' AND indexname = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ChunkVectorIndexName).Scan(&exists); err != nil {
		return false, appErr.Storage(err)
	}
	return exists, nil
}

// Ensure creates the HNSW cosine index on chunk embeddings. It reports
// whether the index had to be created.
func (r *IndexRepo) Ensure(ctx context.Context) (bool, error) {
	exists, err := r.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	const query = `CREATE INDEX IF NOT EXISTS ` + ChunkVectorIndexName + ` ON rag_chunks USING hnsw (embedding vector_cosine_ops)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return false, appErr.Storage(err)
	}
	return true, nil
}
