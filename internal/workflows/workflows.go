package workflows

import (
	"errors"
	"time"

	"lexiflow/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetDocumentStatus = "GetDocumentStatus"

// Workflow results.
const (
	ResultProcessed = "processed"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

var nonRetryableTypes = []string{
	activities.ErrTypeNoExtractableText,
	activities.ErrTypeNoUsableTerms,
	activities.ErrTypeShortBatch,
	activities.ErrTypeDocumentNotFound,
}

// DocumentProcessWorkflow runs extraction, the quick phase, the full phase
// and the ready notification for one document. Domain failures complete the
// workflow as "failed"; upstream failures that outlive the retry policy mark
// the document failed and fail the workflow.
func DocumentProcessWorkflow(ctx workflow.Context, job DocumentJob) (string, error) {
	logger := workflow.GetLogger(ctx)
	status := DocumentStatus{
		DocumentID:  job.DocumentID,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentStatus, func() (DocumentStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: nonRetryableTypes,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	in := activities.JobInput{Job: job}

	step := func(name string) {
		status.CurrentStep = name
		status.Steps[name] = "processing"
	}
	fail := func(err error) (string, error) {
		status.Status = ResultFailed
		status.FailReason = err.Error()
		status.Steps[status.CurrentStep] = "failed"
		if merr := workflow.ExecuteActivity(ctx, "MarkFailedActivity", activities.MarkFailedInput{
			DocumentID: job.DocumentID,
			Reason:     status.CurrentStep + ": " + err.Error(),
		}).Get(ctx, nil); merr != nil {
			logger.Error("mark failed", "document_id", job.DocumentID, "error", merr)
		}
		if isDomainFailure(err) {
			return ResultFailed, nil
		}
		return "", err
	}

	step("check_existing")
	var existing activities.CheckExistingOutput
	if err := workflow.ExecuteActivity(ctx, "CheckExistingActivity", in).Get(ctx, &existing); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"
	if existing.Existing > 0 {
		status.Status = ResultSkipped
		return ResultSkipped, nil
	}

	step("extract_text")
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", in).Get(ctx, nil); err != nil {
		return fail(err)
	}
	status.Steps[status.CurrentStep] = "done"

	step("quick_phase")
	var quick activities.QuickPhaseOutput
	if err := workflow.ExecuteActivity(ctx, "QuickPhaseActivity", in).Get(ctx, &quick); err != nil {
		if isDomainFailure(err) {
			return fail(err)
		}
		logger.Warn("quick phase failed, continuing", "document_id", job.DocumentID, "error", err)
		status.Steps[status.CurrentStep] = "skipped"
	} else {
		status.TermCount = quick.TermCount
		status.Steps[status.CurrentStep] = "done"
	}

	step("full_phase")
	var full activities.FullPhaseOutput
	if err := workflow.ExecuteActivity(ctx, "FullPhaseActivity", in).Get(ctx, &full); err != nil {
		return fail(err)
	}
	status.Steps[status.CurrentStep] = "done"
	if full.Skipped {
		status.Status = ResultSkipped
		return ResultSkipped, nil
	}
	status.QuizID = full.QuizID
	status.TermCount = full.TermCount
	status.ReusedDraft = full.ReusedDraft

	step("notify")
	notifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	if err := workflow.ExecuteActivity(notifyCtx, "NotifyReadyActivity", in).Get(ctx, nil); err != nil {
		logger.Warn("ready notification failed", "document_id", job.DocumentID, "error", err)
		status.Steps[status.CurrentStep] = "failed"
	} else {
		status.Steps[status.CurrentStep] = "done"
	}

	status.Status = ResultProcessed
	return ResultProcessed, nil
}

func isDomainFailure(err error) bool {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return false
	}
	for _, t := range nonRetryableTypes {
		if appErr.Type() == t {
			return true
		}
	}
	return false
}
