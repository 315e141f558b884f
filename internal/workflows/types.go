package workflows

import "lexiflow/internal/pipeline"

// DocumentJob is the enqueued unit of work: one uploaded document.
type DocumentJob = pipeline.Job

type DocumentStatus struct {
	DocumentID  string            `json:"document_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	QuizID      string            `json:"quiz_id,omitempty"`
	TermCount   int               `json:"term_count"`
	ReusedDraft bool              `json:"reused_draft"`
	Steps       map[string]string `json:"steps"`
}
