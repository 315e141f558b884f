package storage

import (
	"context"
	"fmt"

	"lexiflow/internal/llm"
)

// LLMCallRecord is one provider attempt made by the llm adapter.
type LLMCallRecord struct {
	Operation    string
	ProviderName string
	Model        string
	Status       string
	ErrorType    string
	LatencyMS    int64
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(operation, provider_name, model, status, error_type, latency_ms)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6)`,
		rec.Operation, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// RecordCall adapts the repo to the llm adapter's audit hook.
func (r *LLMAuditRepo) RecordCall(ctx context.Context, rec llm.CallRecord) error {
	return r.Insert(ctx, LLMCallRecord{
		Operation:    rec.Operation,
		ProviderName: rec.Provider,
		Model:        rec.Model,
		Status:       rec.Status,
		ErrorType:    rec.ErrorType,
		LatencyMS:    rec.Took.Milliseconds(),
	})
}
