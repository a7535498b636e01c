package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// StoreProcessed replaces the chunk set of a document and marks it processed
// in one transaction. The document must still be in processing.
func (r *ChunkRepo) StoreProcessed(ctx context.Context, docID string, chunks []model.Chunk, now time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return appErr.Storage(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sqlDelete, deleteArgs := dbutil.Finalize("DELETE FROM rag_chunks WHERE document_id=?", []interface{}{docID})
	if _, err = tx.ExecContext(ctx, sqlDelete, deleteArgs...); err != nil {
		return appErr.Storage(err)
	}
	for _, chunk := range chunks {
		sqlStr, args, buildErr := builder.BuildInsert("rag_chunks", []map[string]interface{}{{
			"document_id": docID,
			"chunk_index": chunk.ChunkIndex,
			"text":        chunk.Text,
			"embedding":   pgvector.NewVector(chunk.Embedding),
			"created_at":  now,
		}})
		if buildErr != nil {
			err = buildErr
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err = tx.ExecContext(ctx, sqlStr, args...); err != nil {
			if dbutil.IsConflict(err) {
				err = appErr.Conflict(fmt.Sprintf("chunk %d already exists", chunk.ChunkIndex))
				return err
			}
			return appErr.Storage(err)
		}
	}

	sqlStr, args, err := builder.BuildUpdate("rag_documents",
		map[string]interface{}{"id": docID, "status": string(model.DocumentStatusProcessing)},
		map[string]interface{}{
			"status":      string(model.DocumentStatusProcessed),
			"chunk_count": len(chunks),
			"last_error":  nil,
			"updated_at":  now,
		})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return appErr.Storage(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return appErr.Storage(err)
	}
	if affected == 0 {
		err = appErr.Conflict("document is no longer processing")
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErr.Storage(err)
	}
	return nil
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, docID string) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"_orderby":    "chunk_index asc",
	}
	sqlStr, args, err := builder.BuildSelect("rag_chunks", where, []string{"id", "document_id", "chunk_index", "text", "created_at"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, appErr.Storage(err)
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.CreatedAt); err != nil {
			return nil, appErr.Storage(err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Storage(err)
	}
	return chunks, nil
}

// ListVectors returns every chunk with its embedding in insertion order.
func (r *ChunkRepo) ListVectors(ctx context.Context) ([]model.Chunk, error) {
	const query = `
		SELECT id, document_id, chunk_index, text, embedding, created_at
		FROM rag_chunks
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, appErr.Storage(err)
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var c model.Chunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &vec, &c.CreatedAt); err != nil {
			return nil, appErr.Storage(err)
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Storage(err)
	}
	return chunks, nil
}

// SearchNearest ranks chunks by cosine distance to vec. Ties fall back to
// insertion order.
func (r *ChunkRepo) SearchNearest(ctx context.Context, vec []float32, topK int) ([]model.SearchResult, error) {
	const query = `
		SELECT c.id, c.text, c.chunk_index, 1 - (c.embedding <=> $1) AS score,
			d.id, d.title, d.filetype, d.uploaded_at
		FROM rag_chunks c
		JOIN rag_documents d ON d.id = c.document_id
		ORDER BY c.embedding <=> $1, c.id
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, appErr.Storage(err)
	}
	defer rows.Close()
	results := make([]model.SearchResult, 0, topK)
	for rows.Next() {
		var res model.SearchResult
		var fileType string
		if err := rows.Scan(&res.ChunkID, &res.Text, &res.ChunkIndex, &res.Score,
			&res.Document.ID, &res.Document.Title, &fileType, &res.Document.UploadedAt); err != nil {
			return nil, appErr.Storage(err)
		}
		res.Document.FileType = model.FileType(fileType)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Storage(err)
	}
	return results, nil
}
