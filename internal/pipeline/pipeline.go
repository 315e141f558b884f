// Package pipeline sequences extraction, the quick and full generation
// phases, persistence and notification for one document. Every stage is
// re-entrant so the job queue can retry any of them independently.
package pipeline

import (
	"context"
	"errors"
	"time"

	"lexiflow/internal/cache"
	"lexiflow/internal/config"
	"lexiflow/internal/extraction"
	"lexiflow/internal/generation"
	"lexiflow/internal/lang"
	"lexiflow/internal/models"
	"lexiflow/internal/notify"
	"lexiflow/internal/storage"
	"lexiflow/internal/util"

	"github.com/rs/zerolog"
)

// Job identifies one document to process.
type Job struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	FileKey    string `json:"file_key"`
	Filename   string `json:"filename"`
	CategoryID string `json:"category_id,omitempty"`
}

type DocumentStore interface {
	Get(ctx context.Context, documentID string) (models.Document, error)
	SetExtractedText(ctx context.Context, documentID, text string) error
	MarkProcessed(ctx context.Context, documentID string) error
	CountFlashcards(ctx context.Context, documentID string) (int, error)
	Progress(ctx context.Context, documentID string) (models.DocumentProgress, error)
}

type Vocabulary interface {
	PlatformTerms(ctx context.Context) ([]string, error)
	UserTerms(ctx context.Context, userID, excludeDocumentID string) ([]string, error)
}

type Users interface {
	PreferredLanguage(ctx context.Context, userID string) (lang.Language, error)
}

type Persister interface {
	Persist(ctx context.Context, b storage.Batch) (storage.PersistResult, error)
}

type BlobReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type TermExtractor interface {
	Extract(ctx context.Context, text string, exclude []string) (generation.Draft, error)
}

type Translator interface {
	TranslateOne(ctx context.Context, draft generation.Draft, target lang.Language) (generation.Translations, error)
	TranslateAll(ctx context.Context, draft generation.Draft) (generation.Translations, error)
	TranslateText(ctx context.Context, text string, target lang.Language) (string, error)
	TranslateDocument(ctx context.Context, text string) (lang.Text, error)
}

type Categorizer interface {
	Categorize(ctx context.Context, text string) (models.Category, error)
}

// Deps are the collaborators an Orchestrator drives. Cache may be nil.
type Deps struct {
	Documents   DocumentStore
	Vocabulary  Vocabulary
	Users       Users
	Persister   Persister
	Blobs       BlobReader
	OCR         extraction.Extractor
	Terms       TermExtractor
	Translator  Translator
	Categorizer Categorizer
	Cache       cache.Client
	Notifier    notify.Sink
}

type Options struct {
	QuickTTL          time.Duration
	OCRTTL            time.Duration
	UserTermsTTL      time.Duration
	PlatformTermsTTL  time.Duration
	PointsPerQuestion int
	AppBaseURL        string
	PollAttempts      int
	PollDelay         time.Duration
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		QuickTTL:          cfg.QuickPhaseTTL,
		OCRTTL:            cfg.OCRCacheTTL,
		UserTermsTTL:      cfg.UserTermsTTL,
		PlatformTermsTTL:  cfg.PlatformTermTTL,
		PointsPerQuestion: cfg.PointsPerQuestion,
		AppBaseURL:        cfg.AppBaseURL,
		PollAttempts:      cfg.FinalizePollAttempts,
		PollDelay:         cfg.FinalizePollDelay,
	}
}

type Orchestrator struct {
	deps  Deps
	opts  Options
	log   zerolog.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(deps Deps, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.PointsPerQuestion <= 0 {
		opts.PointsPerQuestion = 10
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 30
	}
	if opts.PollDelay <= 0 {
		opts.PollDelay = 2 * time.Second
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogSink(log)
	}
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		log:   log,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Result summarizes a ProcessDocument run.
type Result struct {
	DocumentID string        `json:"document_id"`
	Skipped    bool          `json:"skipped"`
	Quick      *QuickPayload `json:"quick,omitempty"`
	Full       FullResult    `json:"full"`
}

// ProcessDocument runs every stage in-process. A document that already has
// flashcards is left untouched.
func (o *Orchestrator) ProcessDocument(ctx context.Context, job Job) (Result, error) {
	log := o.jobLogger(job)
	ctx = log.WithContext(ctx)
	res := Result{DocumentID: job.DocumentID}

	existing, exclude, err := o.prepare(ctx, job)
	if err != nil {
		return res, err
	}
	if existing > 0 {
		log.Info().Int("existing", existing).Msg("document already generated, skipping")
		res.Skipped = true
		return res, nil
	}

	if _, err := o.ExtractText(ctx, job); err != nil {
		return res, o.fail(ctx, job.DocumentID, "extract", err)
	}

	quick, err := o.runQuickPhase(ctx, job, exclude)
	switch {
	case err == nil:
		res.Quick = &quick
	case IsTerminal(err):
		return res, o.fail(ctx, job.DocumentID, "quick", err)
	default:
		log.Warn().Err(err).Str("stage", "quick").Msg("quick phase failed, continuing with full phase")
	}

	full, err := o.runFullPhase(ctx, job, exclude)
	if err != nil {
		return res, o.fail(ctx, job.DocumentID, "full", err)
	}
	res.Full = full
	if full.Skipped {
		res.Skipped = true
		return res, nil
	}
	if err := o.NotifyReady(ctx, job); err != nil {
		log.Warn().Err(err).Msg("ready notification failed")
	}
	return res, nil
}

// CheckExisting returns how many flashcards the document already has.
func (o *Orchestrator) CheckExisting(ctx context.Context, documentID string) (int, error) {
	return o.deps.Documents.CountFlashcards(ctx, documentID)
}

// MarkFailed leaves the document processed with no derived content so
// pollers stop waiting. Any quick-phase handoff is dropped with it.
func (o *Orchestrator) MarkFailed(ctx context.Context, documentID, reason string) error {
	o.log.Error().Str("document_id", documentID).Str("reason", reason).Msg("document processing failed")
	o.dropQuickEntries(ctx, documentID)
	return o.deps.Documents.MarkProcessed(ctx, documentID)
}

func (o *Orchestrator) NotifyReady(ctx context.Context, job Job) error {
	return o.deps.Notifier.Notify(ctx, notify.Event{
		UserID:     job.UserID,
		DocumentID: job.DocumentID,
		DeepLink:   notify.DeepLink(o.opts.AppBaseURL, job.DocumentID),
		At:         o.now().UTC(),
	})
}

// IsTerminal reports domain failures that a retry cannot fix.
func IsTerminal(err error) bool {
	return errors.Is(err, util.ErrNoExtractableText) ||
		errors.Is(err, util.ErrNoUsableTerms) ||
		errors.Is(err, util.ErrShortBatch) ||
		errors.Is(err, util.ErrDocumentNotFound)
}

func (o *Orchestrator) fail(ctx context.Context, documentID, stage string, cause error) error {
	if err := o.MarkFailed(ctx, documentID, stage+": "+cause.Error()); err != nil {
		o.log.Error().Err(err).Str("document_id", documentID).Msg("mark failed")
	}
	return cause
}

func (o *Orchestrator) jobLogger(job Job) zerolog.Logger {
	return o.log.With().Str("document_id", job.DocumentID).Str("user_id", job.UserID).Logger()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
