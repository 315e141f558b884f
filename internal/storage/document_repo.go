package storage

import (
	"context"
	"fmt"

	"lexiflow/internal/models"
	"lexiflow/internal/util"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, user_id, filename, storage_key, mime_type, size_bytes, category_id)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`,
		d.DocumentID, d.UserID, d.Filename, d.StorageKey, d.MimeType, d.SizeBytes, d.CategoryID)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, documentID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id::text, user_id, filename, storage_key, mime_type, size_bytes,
       extracted_text, category_id, ocr_processed, created_at, updated_at
FROM documents WHERE document_id=$1::uuid`, documentID).Scan(
		&d.DocumentID, &d.UserID, &d.Filename, &d.StorageKey, &d.MimeType, &d.SizeBytes,
		&d.ExtractedText, &d.CategoryID, &d.OCRProcessed, &d.CreatedAt, &d.UpdatedAt)
	if isNoRows(err) {
		return models.Document{}, fmt.Errorf("%w: %s", util.ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) SetExtractedText(ctx context.Context, documentID, text string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents SET extracted_text=$2, updated_at=NOW() WHERE document_id=$1::uuid`, documentID, text)
	if err != nil {
		return fmt.Errorf("set extracted text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", util.ErrDocumentNotFound, documentID)
	}
	return nil
}

// MarkProcessed flips ocr_processed without touching any derived content.
func (r *DocumentRepo) MarkProcessed(ctx context.Context, documentID string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents SET ocr_processed=TRUE, updated_at=NOW() WHERE document_id=$1::uuid`, documentID)
	if err != nil {
		return fmt.Errorf("mark document processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", util.ErrDocumentNotFound, documentID)
	}
	return nil
}

func (r *DocumentRepo) CountFlashcards(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `
SELECT count(*) FROM custom_flashcards WHERE document_id=$1::uuid`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count flashcards: %w", err)
	}
	return n, nil
}

func (r *DocumentRepo) Progress(ctx context.Context, documentID string) (models.DocumentProgress, error) {
	p := models.DocumentProgress{DocumentID: documentID}
	err := r.db.Pool.QueryRow(ctx, `
SELECT d.user_id, d.ocr_processed,
       EXISTS (SELECT 1 FROM document_translations t WHERE t.document_id=d.document_id),
       (SELECT count(*) FROM custom_flashcards f WHERE f.document_id=d.document_id),
       (SELECT count(*) FROM custom_questions q JOIN custom_quizzes z ON z.quiz_id=q.quiz_id
         WHERE z.document_id=d.document_id),
       EXISTS (SELECT 1 FROM custom_quizzes z WHERE z.document_id=d.document_id)
FROM documents d WHERE d.document_id=$1::uuid`, documentID).Scan(
		&p.UserID, &p.OCRProcessed, &p.HasTranslation, &p.FlashcardCount, &p.QuestionCount, &p.HasQuiz)
	if isNoRows(err) {
		return models.DocumentProgress{}, fmt.Errorf("%w: %s", util.ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return models.DocumentProgress{}, fmt.Errorf("document progress: %w", err)
	}
	return p, nil
}
