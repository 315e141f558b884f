package queue

import (
	"context"
	"errors"
	"testing"

	"lexiflow/internal/workflows"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
)

var job = workflows.DocumentJob{DocumentID: "d1", UserID: "u1", FileKey: "documents/u1/d1.pdf"}

func TestEnqueueUsesDocumentDerivedID(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("document-d1")
	run.On("GetRunID").Return("run-1")
	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o tclient.StartWorkflowOptions) bool {
		return o.ID == "document-d1" &&
			o.TaskQueue == "lexiflow-documents" &&
			o.WorkflowIDReusePolicy == enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY
	}), mock.Anything, job).Return(run, nil)

	ref, err := NewEnqueuer(c, "lexiflow-documents").Enqueue(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, JobRef{WorkflowID: "document-d1", RunID: "run-1"}, ref)
	c.AssertExpectations(t)
}

func TestEnqueueCollapsesDuplicates(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "req", "run-1"))

	ref, err := NewEnqueuer(c, "q").Enqueue(context.Background(), job)
	require.NoError(t, err)
	require.True(t, ref.Duplicate)
	require.Equal(t, "document-d1", ref.WorkflowID)
	require.Equal(t, "run-1", ref.RunID)
}

func TestEnqueueSurfacesOtherErrors(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("frontend unavailable"))

	_, err := NewEnqueuer(c, "q").Enqueue(context.Background(), job)
	require.ErrorContains(t, err, "frontend unavailable")
}

func TestJobID(t *testing.T) {
	require.Equal(t, "document-abc", JobID("abc"))
}
