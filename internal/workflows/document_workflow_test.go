package workflows

import (
	"context"
	"errors"
	"testing"

	"lexiflow/internal/activities"
	"lexiflow/internal/pipeline"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

var job = DocumentJob{DocumentID: "d1", UserID: "u1", FileKey: "documents/u1/d1.pdf", Filename: "notes.pdf"}

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentProcessWorkflow)
	registerActivityName(env, "CheckExistingActivity", func(context.Context, activities.JobInput) (activities.CheckExistingOutput, error) {
		return activities.CheckExistingOutput{}, nil
	})
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.JobInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "QuickPhaseActivity", func(context.Context, activities.JobInput) (activities.QuickPhaseOutput, error) {
		return activities.QuickPhaseOutput{}, nil
	})
	registerActivityName(env, "FullPhaseActivity", func(context.Context, activities.JobInput) (activities.FullPhaseOutput, error) {
		return activities.FullPhaseOutput{}, nil
	})
	registerActivityName(env, "MarkFailedActivity", func(context.Context, activities.MarkFailedInput) error { return nil })
	registerActivityName(env, "NotifyReadyActivity", func(context.Context, activities.JobInput) error { return nil })
	return env
}

func queryStatus(t *testing.T, env *testsuite.TestWorkflowEnvironment) DocumentStatus {
	t.Helper()
	v, err := env.QueryWorkflow(QueryGetDocumentStatus)
	require.NoError(t, err)
	var st DocumentStatus
	require.NoError(t, v.Get(&st))
	return st
}

func TestDocumentProcessWorkflowSuccess(t *testing.T) {
	env := newEnv(t)
	in := activities.JobInput{Job: job}
	env.OnActivity("CheckExistingActivity", mock.Anything, in).Return(activities.CheckExistingOutput{}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, in).Return(activities.ExtractTextOutput{Chars: 900}, nil)
	env.OnActivity("QuickPhaseActivity", mock.Anything, in).Return(activities.QuickPhaseOutput{Language: "es", TermCount: 10, QuestionCount: 10}, nil)
	env.OnActivity("FullPhaseActivity", mock.Anything, in).Return(activities.FullPhaseOutput{FullResult: pipeline.FullResult{
		QuizID: "quiz1", CategoryID: "safety", TermCount: 10, QuestionCount: 10, ReusedDraft: true,
	}}, nil)
	env.OnActivity("NotifyReadyActivity", mock.Anything, in).Return(nil).Once()

	env.ExecuteWorkflow(DocumentProcessWorkflow, job)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultProcessed, out)

	st := queryStatus(t, env)
	require.Equal(t, ResultProcessed, st.Status)
	require.Equal(t, "quiz1", st.QuizID)
	require.True(t, st.ReusedDraft)
	require.Equal(t, "done", st.Steps["full_phase"])
	env.AssertExpectations(t)
}

func TestDocumentProcessWorkflowSkipsGeneratedDocument(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("CheckExistingActivity", mock.Anything, mock.Anything).Return(activities.CheckExistingOutput{Existing: 10}, nil)

	env.ExecuteWorkflow(DocumentProcessWorkflow, job)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultSkipped, out)
	env.AssertNotCalled(t, "ExtractTextActivity", mock.Anything, mock.Anything)
}

func TestDocumentProcessWorkflowNoTextFailsGracefully(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("CheckExistingActivity", mock.Anything, mock.Anything).Return(activities.CheckExistingOutput{}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{},
		temporal.NewNonRetryableApplicationError("no extractable text found in document", activities.ErrTypeNoExtractableText, nil))
	env.OnActivity("MarkFailedActivity", mock.Anything, mock.MatchedBy(func(in activities.MarkFailedInput) bool {
		return in.DocumentID == "d1"
	})).Return(nil).Once()

	env.ExecuteWorkflow(DocumentProcessWorkflow, job)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultFailed, out)

	st := queryStatus(t, env)
	require.Equal(t, "extract_text", st.CurrentStep)
	require.Equal(t, "failed", st.Steps["extract_text"])
	require.Contains(t, st.FailReason, "no extractable text")
	env.AssertExpectations(t)
}

func TestDocumentProcessWorkflowContinuesAfterQuickPhaseOutage(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("CheckExistingActivity", mock.Anything, mock.Anything).Return(activities.CheckExistingOutput{}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Chars: 10}, nil)
	env.OnActivity("QuickPhaseActivity", mock.Anything, mock.Anything).Return(activities.QuickPhaseOutput{}, errors.New("llm: 503"))
	env.OnActivity("FullPhaseActivity", mock.Anything, mock.Anything).Return(activities.FullPhaseOutput{FullResult: pipeline.FullResult{QuizID: "quiz1", TermCount: 10}}, nil)
	env.OnActivity("NotifyReadyActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentProcessWorkflow, job)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	st := queryStatus(t, env)
	require.Equal(t, "skipped", st.Steps["quick_phase"])
	require.Equal(t, ResultProcessed, st.Status)
}

func TestDocumentProcessWorkflowFullPhaseFailureMarksDocument(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("CheckExistingActivity", mock.Anything, mock.Anything).Return(activities.CheckExistingOutput{}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Chars: 10}, nil)
	env.OnActivity("QuickPhaseActivity", mock.Anything, mock.Anything).Return(activities.QuickPhaseOutput{TermCount: 10}, nil)
	env.OnActivity("FullPhaseActivity", mock.Anything, mock.Anything).Return(activities.FullPhaseOutput{}, errors.New("persist batch: connection reset"))
	env.OnActivity("MarkFailedActivity", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(DocumentProcessWorkflow, job)
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertNotCalled(t, "NotifyReadyActivity", mock.Anything, mock.Anything)
	env.AssertExpectations(t)
}

func TestDocumentProcessWorkflowShortBatchIsTerminal(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("CheckExistingActivity", mock.Anything, mock.Anything).Return(activities.CheckExistingOutput{}, nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Chars: 10}, nil)
	env.OnActivity("QuickPhaseActivity", mock.Anything, mock.Anything).Return(activities.QuickPhaseOutput{},
		temporal.NewNonRetryableApplicationError("could not fill term batch", activities.ErrTypeShortBatch, nil))
	env.OnActivity("MarkFailedActivity", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(DocumentProcessWorkflow, job)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultFailed, out)
	env.AssertNotCalled(t, "FullPhaseActivity", mock.Anything, mock.Anything)
}
