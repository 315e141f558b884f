package models

import (
	"time"

	"lexiflow/internal/lang"
)

type Document struct {
	DocumentID    string    `json:"document_id"`
	UserID        string    `json:"user_id"`
	Filename      string    `json:"filename"`
	StorageKey    string    `json:"storage_key"`
	MimeType      string    `json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	ExtractedText *string   `json:"extracted_text,omitempty"`
	CategoryID    *string   `json:"category_id,omitempty"`
	OCRProcessed  bool      `json:"ocr_processed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DocumentTranslation is one-to-one with Document and immutable once written.
type DocumentTranslation struct {
	DocumentID string    `json:"document_id"`
	Text       lang.Text `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Flashcard is a generated term with its definition in every language.
type Flashcard struct {
	FlashcardID string    `json:"flashcard_id"`
	DocumentID  string    `json:"document_id"`
	UserID      string    `json:"user_id"`
	CategoryID  string    `json:"category_id"`
	Position    int       `json:"position"`
	Term        lang.Text `json:"term"`
	Definition  lang.Text `json:"definition"`
	CreatedAt   time.Time `json:"created_at"`
}

type Quiz struct {
	QuizID            string    `json:"quiz_id"`
	DocumentID        string    `json:"document_id"`
	UserID            string    `json:"user_id"`
	CategoryID        string    `json:"category_id"`
	PointsPerQuestion int       `json:"points_per_question"`
	CreatedAt         time.Time `json:"created_at"`
}

type Question struct {
	QuestionID       string    `json:"question_id"`
	QuizID           string    `json:"quiz_id"`
	UserID           string    `json:"user_id"`
	CategoryID       string    `json:"category_id"`
	Position         int       `json:"position"`
	Prompt           lang.Text `json:"prompt"`
	CorrectFlashcard string    `json:"correct_flashcard_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// DocumentProgress is the durable side of the polling contract.
type DocumentProgress struct {
	DocumentID     string `json:"document_id"`
	UserID         string `json:"user_id"`
	OCRProcessed   bool   `json:"ocr_processed"`
	HasTranslation bool   `json:"has_translation"`
	FlashcardCount int    `json:"flashcard_count"`
	QuestionCount  int    `json:"question_count"`
	HasQuiz        bool   `json:"has_quiz"`
}
