package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

var documentColumns = []string{
	"id", "title", "filetype", "content", "filename", "file_url", "status",
	"summary", "chunk_count", "last_error", "uploaded_at", "updated_at",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":          doc.ID,
		"title":       doc.Title,
		"filetype":    string(doc.FileType),
		"content":     doc.Content,
		"filename":    doc.Filename,
		"file_url":    doc.FileURL,
		"status":      string(doc.Status),
		"summary":     doc.Summary,
		"chunk_count": doc.ChunkCount,
		"last_error":  doc.LastError,
		"uploaded_at": doc.UploadedAt,
		"updated_at":  doc.UpdatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("rag_documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.Conflict("document already exists")
		}
		return appErr.Storage(err)
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("rag_documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFound("document not found")
		}
		return nil, appErr.Storage(err)
	}
	return doc, nil
}

// List returns documents newest first. A zero limit returns everything.
func (r *DocumentRepo) List(ctx context.Context, offset, limit uint) ([]*model.Document, error) {
	where := map[string]interface{}{
		"_orderby": "uploaded_at desc, id asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("rag_documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.query(ctx, sqlStr, args...)
}

func (r *DocumentRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Document, error) {
	if len(ids) == 0 {
		return []*model.Document{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, title, filetype, content, filename, file_url, status,
		summary, chunk_count, last_error, uploaded_at, updated_at
		FROM rag_documents WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	return r.query(ctx, query, args...)
}

// ClaimProcessing moves the document to processing when its current status is
// one of from. It reports false when another caller got there first or the
// status does not allow it.
func (r *DocumentRepo) ClaimProcessing(ctx context.Context, id string, from []model.DocumentStatus, now time.Time) (bool, error) {
	statuses := make([]interface{}, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}
	where := map[string]interface{}{
		"id":        id,
		"status in": statuses,
	}
	update := map[string]interface{}{
		"status":     string(model.DocumentStatusProcessing),
		"last_error": nil,
		"updated_at": now,
	}
	affected, err := r.update(ctx, where, update)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *DocumentRepo) MarkFailed(ctx context.Context, id string, reason string, now time.Time) error {
	where := map[string]interface{}{
		"id":     id,
		"status": string(model.DocumentStatusProcessing),
	}
	update := map[string]interface{}{
		"status":     string(model.DocumentStatusFailed),
		"last_error": reason,
		"updated_at": now,
	}
	_, err := r.update(ctx, where, update)
	return err
}

func (r *DocumentRepo) UpdateSummary(ctx context.Context, id string, summary string, now time.Time) error {
	where := map[string]interface{}{
		"id": id,
	}
	update := map[string]interface{}{
		"summary":    summary,
		"updated_at": now,
	}
	affected, err := r.update(ctx, where, update)
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFound("document not found")
	}
	return nil
}

// ListPendingSummaries returns processed documents that still lack a summary,
// oldest first.
func (r *DocumentRepo) ListPendingSummaries(ctx context.Context, limit int) ([]*model.Document, error) {
	sqlStr, args := dbutil.Finalize(`SELECT id, title, filetype, content, filename, file_url, status,
		summary, chunk_count, last_error, uploaded_at, updated_at
		FROM rag_documents
		WHERE status = ? AND summary IS NULL AND content IS NOT NULL
		ORDER BY updated_at ASC
		LIMIT ?`, []interface{}{string(model.DocumentStatusProcessed), limit})
	return r.query(ctx, sqlStr, args...)
}

// FailStaleProcessing fails documents stuck in processing since before cutoff.
func (r *DocumentRepo) FailStaleProcessing(ctx context.Context, cutoff time.Time, reason string, now time.Time) (int64, error) {
	where := map[string]interface{}{
		"status":       string(model.DocumentStatusProcessing),
		"updated_at <": cutoff,
	}
	update := map[string]interface{}{
		"status":     string(model.DocumentStatusFailed),
		"last_error": reason,
		"updated_at": now,
	}
	return r.update(ctx, where, update)
}

func (r *DocumentRepo) update(ctx context.Context, where, update map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildUpdate("rag_documents", where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, appErr.Storage(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, appErr.Storage(err)
	}
	return affected, nil
}

func (r *DocumentRepo) query(ctx context.Context, sqlStr string, args ...interface{}) ([]*model.Document, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, appErr.Storage(err)
	}
	defer rows.Close()
	docs := make([]*model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, appErr.Storage(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Storage(err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var fileType, status string
	if err := row.Scan(
		&doc.ID, &doc.Title, &fileType, &doc.Content, &doc.Filename, &doc.FileURL, &status,
		&doc.Summary, &doc.ChunkCount, &doc.LastError, &doc.UploadedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.FileType = model.FileType(fileType)
	doc.Status = model.DocumentStatus(status)
	return &doc, nil
}
