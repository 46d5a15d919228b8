package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"findocs/internal/domain"
	"findocs/internal/port"
)

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `INSERT INTO documents
		(id, user_id, file_name, file_size, content_type, file_type, kind, subtype,
		 s3_bucket, s3_key, status, stage, extracted_data, row_count, column_mapping,
		 error_message, created_at, updated_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.UserID, doc.FileName, doc.FileSize, doc.ContentType, doc.FileType,
		doc.Kind, doc.Subtype, doc.S3Bucket, doc.S3Key, doc.Status, doc.Stage,
		doc.ExtractedData, doc.RowCount, doc.ColumnMapping, doc.ErrorMessage,
		doc.CreatedAt, doc.UpdatedAt, doc.ProcessedAt)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, userID, docID uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT * FROM documents WHERE id = $1 AND user_id = $2", docID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Document, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM documents WHERE user_id = $1", userID)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.ListByUser count: %w", err)
	}

	var docs []domain.Document
	err = r.db.SelectContext(ctx, &docs,
		`SELECT * FROM documents
		 WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.ListByUser: %w", err)
	}
	return docs, total, nil
}

// UpdateStage persists a status/stage move without touching results.
func (r *documentRepo) UpdateStage(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, stage = $2, updated_at = $3
		 WHERE id = $4 AND user_id = $5`,
		doc.Status, doc.Stage, doc.UpdatedAt, doc.ID, doc.UserID)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateStage: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateResult persists the full pipeline outcome: classification, status,
// stage, extracted data, row count, column mapping, and error message.
func (r *documentRepo) UpdateResult(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET
			subtype = $1, status = $2, stage = $3, extracted_data = $4,
			row_count = $5, column_mapping = $6, error_message = $7,
			updated_at = $8, processed_at = $9
		 WHERE id = $10 AND user_id = $11`,
		doc.Subtype, doc.Status, doc.Stage, doc.ExtractedData,
		doc.RowCount, doc.ColumnMapping, doc.ErrorMessage,
		doc.UpdatedAt, doc.ProcessedAt, doc.ID, doc.UserID)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateResult: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, userID, docID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM documents WHERE id = $1 AND user_id = $2", docID, userID)
	if err != nil {
		return fmt.Errorf("documentRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
