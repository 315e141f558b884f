package storage

import (
	"context"
	"fmt"

	"lexiflow/internal/lang"
)

// VocabularyRepo reads the terms a learner already owns.
type VocabularyRepo struct {
	db *DB
}

func NewVocabularyRepo(db *DB) *VocabularyRepo {
	return &VocabularyRepo{db: db}
}

func (r *VocabularyRepo) PlatformTerms(ctx context.Context) ([]string, error) {
	return r.queryTerms(ctx, `SELECT lower(term_en) FROM platform_terms`)
}

// UserTerms lists the user's custom terms outside excludeDocumentID.
func (r *VocabularyRepo) UserTerms(ctx context.Context, userID, excludeDocumentID string) ([]string, error) {
	return r.queryTerms(ctx, `
SELECT DISTINCT lower(term_en) FROM custom_flashcards
WHERE user_id=$1 AND document_id <> $2::uuid`, userID, excludeDocumentID)
}

func (r *VocabularyRepo) AddPlatformTerms(ctx context.Context, terms []string) error {
	for _, t := range terms {
		if _, err := r.db.Pool.Exec(ctx, `
INSERT INTO platform_terms (term_en) VALUES ($1) ON CONFLICT (term_en) DO NOTHING`, t); err != nil {
			return fmt.Errorf("insert platform term: %w", err)
		}
	}
	return nil
}

func (r *VocabularyRepo) queryTerms(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0, 64)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	return out, nil
}

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// PreferredLanguage falls back to the canonical language for unknown users
// or unsupported codes.
func (r *UserRepo) PreferredLanguage(ctx context.Context, userID string) (lang.Language, error) {
	var code string
	err := r.db.Pool.QueryRow(ctx, `SELECT preferred_language FROM users WHERE user_id=$1`, userID).Scan(&code)
	if err != nil {
		if isNoRows(err) {
			return lang.Canonical, nil
		}
		return lang.Canonical, fmt.Errorf("preferred language: %w", err)
	}
	return lang.ParseOrCanonical(code), nil
}

func (r *UserRepo) Upsert(ctx context.Context, userID string, preferred lang.Language) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO users (user_id, preferred_language) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET preferred_language=EXCLUDED.preferred_language`, userID, preferred.Code())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
