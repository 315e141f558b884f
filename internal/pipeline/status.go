package pipeline

import (
	"context"

	"lexiflow/internal/cache"
)

type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

const (
	SourceStore      = "store"
	SourceQuickCache = "quick_cache"
)

// StatusReport is what a polling client sees. Counts come from the quick
// cache while the durable store is still empty.
type StatusReport struct {
	DocumentID      string `json:"document_id"`
	State           State  `json:"status"`
	OCRProcessed    bool   `json:"ocr_processed"`
	HasTranslation  bool   `json:"has_translation"`
	HasQuiz         bool   `json:"has_quiz"`
	FlashcardCount  int    `json:"flashcard_count"`
	QuestionCount   int    `json:"question_count"`
	Source          string `json:"source"`
	PreviewLanguage string `json:"preview_language,omitempty"`
}

func (o *Orchestrator) Status(ctx context.Context, documentID string) (StatusReport, error) {
	p, err := o.deps.Documents.Progress(ctx, documentID)
	if err != nil {
		return StatusReport{}, err
	}
	r := StatusReport{
		DocumentID:     documentID,
		OCRProcessed:   p.OCRProcessed,
		HasTranslation: p.HasTranslation,
		HasQuiz:        p.HasQuiz,
		FlashcardCount: p.FlashcardCount,
		QuestionCount:  p.QuestionCount,
		Source:         SourceStore,
	}
	switch {
	case p.OCRProcessed && p.HasTranslation && p.FlashcardCount > 0 && p.HasQuiz:
		r.State = StateCompleted
	case p.OCRProcessed:
		r.State = StateError
	default:
		r.State = StateProcessing
		if q, ok := cache.GetJSON[QuickPayload](ctx, o.deps.Cache, cache.QuickFlashcardsKey(documentID)); ok {
			r.FlashcardCount = q.TermCount()
			r.QuestionCount = q.QuestionCount()
			r.Source = SourceQuickCache
			r.PreviewLanguage = q.Language.Code()
		}
	}
	return r, nil
}

// Finalize polls Status until the document leaves processing or the attempt
// budget runs out. The last report is returned either way.
func (o *Orchestrator) Finalize(ctx context.Context, documentID string) (StatusReport, error) {
	var last StatusReport
	for attempt := 1; attempt <= o.opts.PollAttempts; attempt++ {
		r, err := o.Status(ctx, documentID)
		if err != nil {
			return StatusReport{}, err
		}
		last = r
		if r.State != StateProcessing || attempt == o.opts.PollAttempts {
			break
		}
		if err := o.sleep(ctx, o.opts.PollDelay); err != nil {
			return last, err
		}
	}
	return last, nil
}
