// Package generation turns document text into a batch of study terms,
// quiz questions and their translations.
package generation

import (
	"context"

	"lexiflow/internal/config"
)

const (
	OpExtractTerms   = "extract_terms"
	OpTranslateBatch = "translate_batch"
	OpTranslateText  = "translate_text"
	OpCategorize     = "categorize"
)

// LLM is the slice of the generative adapter this package needs.
type LLM interface {
	GenerateText(ctx context.Context, op, prompt string) (string, error)
	GenerateJSON(ctx context.Context, op, prompt string, out any) error
}

// Candidate is a term as proposed by the model, before cleaning.
type Candidate struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type CandidateQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// DraftTerm is a cleaned term at its 1-based position in the batch.
type DraftTerm struct {
	Position   int    `json:"position"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// DraftQuestion points at its answer by batch position, not by a stored id.
type DraftQuestion struct {
	Position     int    `json:"position"`
	Prompt       string `json:"prompt"`
	TermPosition int    `json:"term_position"`
	Synthesized  bool   `json:"synthesized,omitempty"`
}

// Draft is the canonical-language output of one extraction run. It is the
// value handed from the quick phase to the full phase.
type Draft struct {
	Terms        []DraftTerm         `json:"terms"`
	Questions    []DraftQuestion     `json:"questions"`
	RawTerms     []Candidate         `json:"raw_terms"`
	RawQuestions []CandidateQuestion `json:"raw_questions"`
}

// Policy bounds an extraction run. Fewer than MinUsableTerms after cleaning
// is fatal; anything between that and BatchSize is topped up by at most
// BackfillRounds extra requests.
type Policy struct {
	BatchSize      int
	CandidateCount int
	MinUsableTerms int
	BackfillRounds int
	TextBudget     int
}

func PolicyFromConfig(cfg config.Config) Policy {
	return Policy{
		BatchSize:      cfg.BatchSize,
		CandidateCount: cfg.CandidateCount,
		MinUsableTerms: cfg.MinUsableTerms,
		BackfillRounds: cfg.BackfillRounds,
		TextBudget:     cfg.TextBudget,
	}.normalized()
}

func (p Policy) normalized() Policy {
	if p.BatchSize <= 0 {
		p.BatchSize = 10
	}
	if p.CandidateCount < p.BatchSize {
		p.CandidateCount = p.BatchSize + p.BatchSize/2
	}
	if p.MinUsableTerms <= 0 {
		p.MinUsableTerms = 1
	}
	if p.MinUsableTerms > p.BatchSize {
		p.MinUsableTerms = p.BatchSize
	}
	if p.BackfillRounds < 0 {
		p.BackfillRounds = 0
	}
	if p.TextBudget <= 0 {
		p.TextBudget = 12000
	}
	return p
}
