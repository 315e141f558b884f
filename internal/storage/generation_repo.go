package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexiflow/internal/lang"
	"lexiflow/internal/util"

	"github.com/jackc/pgx/v5"
)

// TermRow is a flashcard to insert at its 1-based batch position.
type TermRow struct {
	Position   int
	Term       lang.Text
	Definition lang.Text
}

// QuestionRow references its answer by batch position. The position is
// resolved to a flashcard id inside the transaction.
type QuestionRow struct {
	Position     int
	Prompt       lang.Text
	TermPosition int
}

// Batch is everything one full generation run writes.
type Batch struct {
	DocumentID        string
	UserID            string
	CategoryID        string
	ExtractedText     string
	Translation       lang.Text
	PointsPerQuestion int
	Terms             []TermRow
	Questions         []QuestionRow
}

type PersistResult struct {
	QuizID       string
	FlashcardIDs map[int]string
	QuestionIDs  []string
}

type GenerationRepo struct {
	db *DB
}

func NewGenerationRepo(db *DB) *GenerationRepo {
	return &GenerationRepo{db: db}
}

// Persist writes the document update, translation, quiz, flashcards and
// questions in one transaction. Any failure rolls all of it back.
func (r *GenerationRepo) Persist(ctx context.Context, b Batch) (PersistResult, error) {
	if len(b.Terms) == 0 || len(b.Terms) != len(b.Questions) {
		return PersistResult{}, fmt.Errorf("persist batch: %d terms vs %d questions", len(b.Terms), len(b.Questions))
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return PersistResult{}, fmt.Errorf("begin tx persist batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var processed bool
	err = tx.QueryRow(ctx, `SELECT ocr_processed FROM documents WHERE document_id=$1::uuid FOR UPDATE`, b.DocumentID).Scan(&processed)
	if isNoRows(err) {
		return PersistResult{}, fmt.Errorf("%w: %s", util.ErrDocumentNotFound, b.DocumentID)
	}
	if err != nil {
		return PersistResult{}, fmt.Errorf("lock document: %w", err)
	}
	var existing int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM custom_flashcards WHERE document_id=$1::uuid`, b.DocumentID).Scan(&existing); err != nil {
		return PersistResult{}, fmt.Errorf("count existing flashcards: %w", err)
	}
	if existing > 0 {
		return PersistResult{}, util.ErrAlreadyGenerated
	}

	if _, err := tx.Exec(ctx, `
UPDATE documents
SET extracted_text=COALESCE(NULLIF($2, ''), extracted_text), category_id=$3, ocr_processed=TRUE, updated_at=NOW()
WHERE document_id=$1::uuid`, b.DocumentID, b.ExtractedText, b.CategoryID); err != nil {
		return PersistResult{}, fmt.Errorf("update document: %w", err)
	}

	translationSQL := fmt.Sprintf(`
INSERT INTO document_translations (document_id, %s) VALUES ($1::uuid, %s)
ON CONFLICT (document_id) DO NOTHING`,
		strings.Join(langColumns("text"), ", "), placeholders(2, len(lang.All)))
	if _, err := tx.Exec(ctx, translationSQL, append([]any{b.DocumentID}, textArgs(b.Translation)...)...); err != nil {
		return PersistResult{}, fmt.Errorf("insert document translation: %w", err)
	}

	res := PersistResult{FlashcardIDs: make(map[int]string, len(b.Terms))}
	if err := tx.QueryRow(ctx, `
INSERT INTO custom_quizzes (document_id, user_id, category_id, points_per_question)
VALUES ($1::uuid, $2, $3, $4) RETURNING quiz_id::text`,
		b.DocumentID, b.UserID, b.CategoryID, b.PointsPerQuestion).Scan(&res.QuizID); err != nil {
		return PersistResult{}, fmt.Errorf("insert quiz: %w", err)
	}

	n := len(lang.All)
	flashcardSQL := fmt.Sprintf(`
INSERT INTO custom_flashcards (document_id, user_id, category_id, position, %s, %s)
VALUES ($1::uuid, $2, $3, $4, %s, %s) RETURNING flashcard_id::text`,
		strings.Join(langColumns("term"), ", "), strings.Join(langColumns("definition"), ", "),
		placeholders(5, n), placeholders(5+n, n))
	for _, t := range b.Terms {
		args := append([]any{b.DocumentID, b.UserID, b.CategoryID, t.Position}, textArgs(t.Term)...)
		args = append(args, textArgs(t.Definition)...)
		var id string
		if err := tx.QueryRow(ctx, flashcardSQL, args...).Scan(&id); err != nil {
			return PersistResult{}, fmt.Errorf("insert flashcard %d: %w", t.Position, err)
		}
		if _, dup := res.FlashcardIDs[t.Position]; dup {
			return PersistResult{}, fmt.Errorf("duplicate term position %d", t.Position)
		}
		res.FlashcardIDs[t.Position] = id
	}

	questionSQL := fmt.Sprintf(`
INSERT INTO custom_questions (quiz_id, user_id, category_id, position, correct_flashcard_id, %s)
VALUES ($1::uuid, $2, $3, $4, $5::uuid, %s) RETURNING question_id::text`,
		strings.Join(langColumns("prompt"), ", "), placeholders(6, n))
	for _, q := range b.Questions {
		flashcardID, ok := res.FlashcardIDs[q.TermPosition]
		if !ok {
			return PersistResult{}, fmt.Errorf("question %d references unknown term position %d", q.Position, q.TermPosition)
		}
		args := append([]any{res.QuizID, b.UserID, b.CategoryID, q.Position, flashcardID}, textArgs(q.Prompt)...)
		var id string
		if err := tx.QueryRow(ctx, questionSQL, args...).Scan(&id); err != nil {
			return PersistResult{}, fmt.Errorf("insert question %d: %w", q.Position, err)
		}
		res.QuestionIDs = append(res.QuestionIDs, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return PersistResult{}, fmt.Errorf("commit batch tx: %w", err)
	}
	return res, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
