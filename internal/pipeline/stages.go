package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lexiflow/internal/cache"
	"lexiflow/internal/generation"
	"lexiflow/internal/lang"
	"lexiflow/internal/models"
	"lexiflow/internal/storage"
	"lexiflow/internal/util"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// QuickItem is one term rendered in the quick-phase language.
type QuickItem struct {
	Position   int    `json:"position"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Question   string `json:"question"`
}

// QuickPayload is the quick-phase handoff. Draft carries the canonical
// extraction so the full phase can reuse it instead of extracting again.
type QuickPayload struct {
	DocumentID string           `json:"document_id"`
	Language   lang.Language    `json:"language"`
	Draft      generation.Draft `json:"draft"`
	Items      []QuickItem      `json:"items"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (p QuickPayload) TermCount() int     { return len(p.Draft.Terms) }
func (p QuickPayload) QuestionCount() int { return len(p.Draft.Questions) }

// QuickTranslation is the single-language document preview.
type QuickTranslation struct {
	DocumentID string        `json:"document_id"`
	Language   lang.Language `json:"language"`
	Text       string        `json:"text"`
}

type FullResult struct {
	QuizID        string `json:"quiz_id,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
	TermCount     int    `json:"term_count"`
	QuestionCount int    `json:"question_count"`
	ReusedDraft   bool   `json:"reused_draft"`
	Skipped       bool   `json:"skipped"`
}

// prepare counts existing flashcards and loads the exclusion set together.
func (o *Orchestrator) prepare(ctx context.Context, job Job) (int, []string, error) {
	var (
		existing int
		exclude  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := o.CheckExisting(gctx, job.DocumentID)
		existing = n
		return err
	})
	g.Go(func() error {
		terms, err := o.exclusion(gctx, job)
		exclude = terms
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}
	return existing, exclude, nil
}

// exclusion returns every term the user already owns outside this document:
// platform vocabulary plus their other custom terms. Never nil on success.
func (o *Orchestrator) exclusion(ctx context.Context, job Job) ([]string, error) {
	var platform, own []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		terms, err := cache.GetOrCompute(gctx, o.deps.Cache, cache.PlatformTermsKey(), o.opts.PlatformTermsTTL, o.deps.Vocabulary.PlatformTerms)
		platform = terms
		if err != nil {
			return fmt.Errorf("platform terms: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		terms, err := cache.GetOrCompute(gctx, o.deps.Cache, cache.UserTermsKey(job.UserID, job.DocumentID), o.opts.UserTermsTTL,
			func(ctx context.Context) ([]string, error) {
				return o.deps.Vocabulary.UserTerms(ctx, job.UserID, job.DocumentID)
			})
		own = terms
		if err != nil {
			return fmt.Errorf("user terms: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return generation.NewTermSet(platform).Union(generation.NewTermSet(own)).Sorted(), nil
}

// ExtractText returns the document's text, running OCR only when the
// document has none yet. OCR output is memoized by content hash.
func (o *Orchestrator) ExtractText(ctx context.Context, job Job) (string, error) {
	ctx = o.withJobLogger(ctx, job)
	doc, err := o.deps.Documents.Get(ctx, job.DocumentID)
	if err != nil {
		return "", err
	}
	if doc.ExtractedText != nil && strings.TrimSpace(*doc.ExtractedText) != "" {
		return *doc.ExtractedText, nil
	}
	key := job.FileKey
	if key == "" {
		key = doc.StorageKey
	}
	data, err := o.deps.Blobs.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load document bytes: %w", err)
	}
	text, err := cache.GetOrCompute(ctx, o.deps.Cache, cache.OCRKey(util.SHA256Hex(data)), o.opts.OCRTTL,
		func(ctx context.Context) (string, error) {
			return o.deps.OCR.Extract(ctx, data, doc.MimeType)
		})
	if err != nil {
		return "", err
	}
	text = util.SanitizeText(text)
	if strings.TrimSpace(text) == "" {
		return "", util.ErrNoExtractableText
	}
	if err := o.deps.Documents.SetExtractedText(ctx, job.DocumentID, text); err != nil {
		return "", err
	}
	zerolog.Ctx(ctx).Info().Str("stage", "extract").Int("chars", len(text)).Msg("text extracted")
	return text, nil
}

// RunQuickPhase extracts in the canonical language, translates to the
// user's preferred language and caches the result. Nothing is persisted.
func (o *Orchestrator) RunQuickPhase(ctx context.Context, job Job) (QuickPayload, error) {
	ctx = o.withJobLogger(ctx, job)
	exclude, err := o.exclusion(ctx, job)
	if err != nil {
		return QuickPayload{}, err
	}
	return o.runQuickPhase(ctx, job, exclude)
}

func (o *Orchestrator) runQuickPhase(ctx context.Context, job Job, exclude []string) (QuickPayload, error) {
	log := zerolog.Ctx(ctx)
	text, err := o.documentText(ctx, job.DocumentID)
	if err != nil {
		return QuickPayload{}, err
	}
	draft, err := o.deps.Terms.Extract(ctx, text, exclude)
	if err != nil {
		return QuickPayload{}, err
	}

	target, err := o.deps.Users.PreferredLanguage(ctx, job.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("preferred language lookup failed, using canonical")
		target = lang.Canonical
	}
	tr, err := o.deps.Translator.TranslateOne(ctx, draft, target)
	if err != nil {
		return QuickPayload{}, err
	}

	payload := QuickPayload{
		DocumentID: job.DocumentID,
		Language:   target,
		Draft:      draft,
		CreatedAt:  o.now().UTC(),
	}
	for _, item := range generation.Localize(draft, tr) {
		payload.Items = append(payload.Items, QuickItem{
			Position:   item.Position,
			Term:       item.Term.Get(target),
			Definition: item.Definition.Get(target),
			Question:   item.Question.Get(target),
		})
	}
	if err := cache.SetJSON(ctx, o.deps.Cache, cache.QuickFlashcardsKey(job.DocumentID), payload, o.opts.QuickTTL); err != nil {
		log.Warn().Err(err).Msg("quick payload not cached")
	}

	preview, err := o.deps.Translator.TranslateText(ctx, text, target)
	if err != nil {
		log.Warn().Err(err).Msg("quick translation preview failed")
	} else {
		qt := QuickTranslation{DocumentID: job.DocumentID, Language: target, Text: preview}
		if err := cache.SetJSON(ctx, o.deps.Cache, cache.QuickTranslationKey(job.DocumentID), qt, o.opts.QuickTTL); err != nil {
			log.Warn().Err(err).Msg("quick translation not cached")
		}
	}
	log.Info().Str("stage", "quick").Str("language", target.Code()).Int("terms", payload.TermCount()).Msg("quick phase done")
	return payload, nil
}

// RunFullPhase translates to every language, resolves the category and
// persists the whole batch in one transaction.
func (o *Orchestrator) RunFullPhase(ctx context.Context, job Job) (FullResult, error) {
	return o.runFullPhase(o.withJobLogger(ctx, job), job, nil)
}

// runFullPhase loads the exclusion set itself when exclude is nil and no
// quick draft is available.
func (o *Orchestrator) runFullPhase(ctx context.Context, job Job, exclude []string) (FullResult, error) {
	log := zerolog.Ctx(ctx)
	doc, err := o.deps.Documents.Get(ctx, job.DocumentID)
	if err != nil {
		return FullResult{}, err
	}
	if doc.ExtractedText == nil || strings.TrimSpace(*doc.ExtractedText) == "" {
		return FullResult{}, util.ErrNoExtractableText
	}
	text := *doc.ExtractedText

	var res FullResult
	draft, ok := o.quickDraft(ctx, job.DocumentID)
	if ok {
		res.ReusedDraft = true
	} else {
		if exclude == nil {
			if exclude, err = o.exclusion(ctx, job); err != nil {
				return FullResult{}, err
			}
		}
		if draft, err = o.deps.Terms.Extract(ctx, text, exclude); err != nil {
			return FullResult{}, err
		}
	}

	var (
		tr          generation.Translations
		translation lang.Text
		category    models.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tr, err = o.deps.Translator.TranslateAll(gctx, draft)
		return err
	})
	g.Go(func() error {
		var err error
		translation, err = o.deps.Translator.TranslateDocument(gctx, text)
		return err
	})
	g.Go(func() error {
		var err error
		category, err = o.resolveCategory(gctx, job, doc, text)
		return err
	})
	if err := g.Wait(); err != nil {
		return FullResult{}, err
	}

	batch := buildBatch(job, text, category.CategoryID, o.opts.PointsPerQuestion, draft, tr, translation)
	persisted, err := o.deps.Persister.Persist(ctx, batch)
	if errors.Is(err, util.ErrAlreadyGenerated) {
		log.Info().Msg("batch already persisted by an earlier run")
		o.dropQuickEntries(ctx, job.DocumentID)
		return FullResult{Skipped: true, ReusedDraft: res.ReusedDraft}, nil
	}
	if err != nil {
		return FullResult{}, fmt.Errorf("persist batch: %w", err)
	}

	o.dropQuickEntries(ctx, job.DocumentID)
	cache.InvalidateDerived(ctx, o.deps.Cache, job.UserID, job.DocumentID, category.CategoryID)

	res.QuizID = persisted.QuizID
	res.CategoryID = category.CategoryID
	res.TermCount = len(persisted.FlashcardIDs)
	res.QuestionCount = len(persisted.QuestionIDs)
	log.Info().Str("stage", "full").Str("quiz_id", res.QuizID).Str("category_id", res.CategoryID).
		Int("terms", res.TermCount).Bool("reused_draft", res.ReusedDraft).Msg("full phase persisted")
	return res, nil
}

// quickDraft reads the quick-phase handoff. An entry whose terms and
// questions disagree is ignored.
func (o *Orchestrator) quickDraft(ctx context.Context, documentID string) (generation.Draft, bool) {
	p, ok := cache.GetJSON[QuickPayload](ctx, o.deps.Cache, cache.QuickFlashcardsKey(documentID))
	if !ok || len(p.Draft.Terms) == 0 || len(p.Draft.Terms) != len(p.Draft.Questions) {
		return generation.Draft{}, false
	}
	return p.Draft, true
}

// resolveCategory prefers the job's explicit category, then the document's,
// then inference from the text.
func (o *Orchestrator) resolveCategory(ctx context.Context, job Job, doc models.Document, text string) (models.Category, error) {
	if c, ok := models.LookupCategory(job.CategoryID); ok {
		return c, nil
	}
	if doc.CategoryID != nil {
		if c, ok := models.LookupCategory(*doc.CategoryID); ok {
			return c, nil
		}
	}
	return o.deps.Categorizer.Categorize(ctx, text)
}

func buildBatch(job Job, text, categoryID string, points int, draft generation.Draft, tr generation.Translations, translation lang.Text) storage.Batch {
	items := generation.Localize(draft, tr)
	b := storage.Batch{
		DocumentID:        job.DocumentID,
		UserID:            job.UserID,
		CategoryID:        categoryID,
		ExtractedText:     text,
		Translation:       translation,
		PointsPerQuestion: points,
		Terms:             make([]storage.TermRow, len(items)),
		Questions:         make([]storage.QuestionRow, len(draft.Questions)),
	}
	for i, item := range items {
		b.Terms[i] = storage.TermRow{Position: item.Position, Term: item.Term, Definition: item.Definition}
	}
	for i, q := range draft.Questions {
		prompt := lang.NewText(q.Prompt)
		if i < len(items) {
			prompt = items[i].Question
		}
		b.Questions[i] = storage.QuestionRow{Position: q.Position, Prompt: prompt, TermPosition: q.TermPosition}
	}
	return b
}

func (o *Orchestrator) documentText(ctx context.Context, documentID string) (string, error) {
	doc, err := o.deps.Documents.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.ExtractedText == nil || strings.TrimSpace(*doc.ExtractedText) == "" {
		return "", util.ErrNoExtractableText
	}
	return *doc.ExtractedText, nil
}

func (o *Orchestrator) dropQuickEntries(ctx context.Context, documentID string) {
	if o.deps.Cache == nil {
		return
	}
	for _, key := range []string{cache.QuickFlashcardsKey(documentID), cache.QuickTranslationKey(documentID)} {
		if err := o.deps.Cache.Delete(ctx, key); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("cache_key", key).Msg("quick entry not deleted")
		}
	}
}

// withJobLogger attaches the job logger unless the caller already did.
func (o *Orchestrator) withJobLogger(ctx context.Context, job Job) context.Context {
	if zerolog.Ctx(ctx).GetLevel() != zerolog.Disabled {
		return ctx
	}
	log := o.jobLogger(job)
	return log.WithContext(ctx)
}
