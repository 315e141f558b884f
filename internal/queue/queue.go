// Package queue enqueues document jobs on Temporal. The workflow id is
// derived from the document id, so duplicate enqueues collapse into one
// in-flight job.
package queue

import (
	"context"
	"errors"
	"fmt"

	"lexiflow/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// WorkflowStarter is the slice of the Temporal client the queue needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type JobRef struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id,omitempty"`
	Duplicate  bool   `json:"duplicate"`
}

type Enqueuer struct {
	client    WorkflowStarter
	taskQueue string
}

func NewEnqueuer(c WorkflowStarter, taskQueue string) *Enqueuer {
	return &Enqueuer{client: c, taskQueue: taskQueue}
}

func JobID(documentID string) string {
	return "document-" + documentID
}

// Enqueue starts DocumentProcessWorkflow for the job. A job that is already
// running, or that already completed, is reported as a duplicate. Only a
// failed run may be started again under the same id.
func (e *Enqueuer) Enqueue(ctx context.Context, job workflows.DocumentJob) (JobRef, error) {
	id := JobID(job.DocumentID)
	run, err := e.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       id,
		TaskQueue:                                e.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.DocumentProcessWorkflow, job)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return JobRef{WorkflowID: id, RunID: started.RunId, Duplicate: true}, nil
		}
		return JobRef{}, fmt.Errorf("enqueue document %s: %w", job.DocumentID, err)
	}
	return JobRef{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}

// Status queries the live workflow for its step-level status.
func (e *Enqueuer) Status(ctx context.Context, documentID string) (workflows.DocumentStatus, error) {
	var st workflows.DocumentStatus
	v, err := e.client.QueryWorkflow(ctx, JobID(documentID), "", workflows.QueryGetDocumentStatus)
	if err != nil {
		return st, err
	}
	if err := v.Get(&st); err != nil {
		return st, fmt.Errorf("decode workflow status: %w", err)
	}
	return st, nil
}
