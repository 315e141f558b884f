package activities

import "lexiflow/internal/pipeline"

// JobInput carries the document job into every stage activity.
type JobInput struct {
	pipeline.Job
}

type CheckExistingOutput struct {
	Existing int `json:"existing"`
}

type ExtractTextOutput struct {
	Chars int `json:"chars"`
}

type QuickPhaseOutput struct {
	Language      string `json:"language"`
	TermCount     int    `json:"term_count"`
	QuestionCount int    `json:"question_count"`
}

type FullPhaseOutput struct {
	pipeline.FullResult
}

type MarkFailedInput struct {
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
}
