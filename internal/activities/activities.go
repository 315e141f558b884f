package activities

import (
	"context"
	"errors"

	"lexiflow/internal/pipeline"
	"lexiflow/internal/util"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"
)

// Non-retryable failure types reported to the workflow.
const (
	ErrTypeNoExtractableText = "NoExtractableText"
	ErrTypeNoUsableTerms     = "NoUsableTerms"
	ErrTypeShortBatch        = "ShortBatch"
	ErrTypeDocumentNotFound  = "DocumentNotFound"
)

// Stages is the orchestrator surface the activities drive.
type Stages interface {
	CheckExisting(ctx context.Context, documentID string) (int, error)
	ExtractText(ctx context.Context, job pipeline.Job) (string, error)
	RunQuickPhase(ctx context.Context, job pipeline.Job) (pipeline.QuickPayload, error)
	RunFullPhase(ctx context.Context, job pipeline.Job) (pipeline.FullResult, error)
	MarkFailed(ctx context.Context, documentID, reason string) error
	NotifyReady(ctx context.Context, job pipeline.Job) error
}

type Activities struct {
	stages Stages
	log    zerolog.Logger
}

func New(stages Stages, log zerolog.Logger) *Activities {
	return &Activities{stages: stages, log: log.With().Str("component", "activities").Logger()}
}

func (a *Activities) CheckExistingActivity(ctx context.Context, in JobInput) (CheckExistingOutput, error) {
	n, err := a.stages.CheckExisting(a.ctx(ctx, in), in.DocumentID)
	if err != nil {
		return CheckExistingOutput{}, classify(err)
	}
	return CheckExistingOutput{Existing: n}, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in JobInput) (ExtractTextOutput, error) {
	text, err := a.stages.ExtractText(a.ctx(ctx, in), in.Job)
	if err != nil {
		return ExtractTextOutput{}, classify(err)
	}
	return ExtractTextOutput{Chars: len(text)}, nil
}

func (a *Activities) QuickPhaseActivity(ctx context.Context, in JobInput) (QuickPhaseOutput, error) {
	p, err := a.stages.RunQuickPhase(a.ctx(ctx, in), in.Job)
	if err != nil {
		return QuickPhaseOutput{}, classify(err)
	}
	return QuickPhaseOutput{Language: p.Language.Code(), TermCount: p.TermCount(), QuestionCount: p.QuestionCount()}, nil
}

func (a *Activities) FullPhaseActivity(ctx context.Context, in JobInput) (FullPhaseOutput, error) {
	res, err := a.stages.RunFullPhase(a.ctx(ctx, in), in.Job)
	if err != nil {
		return FullPhaseOutput{}, classify(err)
	}
	return FullPhaseOutput{FullResult: res}, nil
}

func (a *Activities) MarkFailedActivity(ctx context.Context, in MarkFailedInput) error {
	return a.stages.MarkFailed(a.log.With().Str("document_id", in.DocumentID).Logger().WithContext(ctx), in.DocumentID, in.Reason)
}

func (a *Activities) NotifyReadyActivity(ctx context.Context, in JobInput) error {
	return a.stages.NotifyReady(a.ctx(ctx, in), in.Job)
}

func (a *Activities) ctx(ctx context.Context, in JobInput) context.Context {
	return a.log.With().Str("document_id", in.DocumentID).Str("user_id", in.UserID).Logger().WithContext(ctx)
}

// classify turns domain failures into non-retryable application errors so
// the queue only retries upstream and transient failures.
func classify(err error) error {
	var errType string
	switch {
	case errors.Is(err, util.ErrNoExtractableText):
		errType = ErrTypeNoExtractableText
	case errors.Is(err, util.ErrNoUsableTerms):
		errType = ErrTypeNoUsableTerms
	case errors.Is(err, util.ErrShortBatch):
		errType = ErrTypeShortBatch
	case errors.Is(err, util.ErrDocumentNotFound):
		errType = ErrTypeDocumentNotFound
	default:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}
