package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// callLogStore implements driven.CallLogStore.
type callLogStore struct {
	store *Store
}

var _ driven.CallLogStore = (*callLogStore)(nil)

// DefaultCallListLimit applies when List is called with a non-positive limit.
const DefaultCallListLimit = 50

// Record stores one call record.
func (s *callLogStore) Record(ctx context.Context, rec *domain.CallRecord) error {
	if rec == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO call_logs (id, operation, model, prompt, response, status, error, attempts,
			prompt_tokens, completion_tokens, total_tokens, finish_reason, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Operation, rec.Model, rec.Prompt, rec.Response, string(rec.Status), rec.Error,
		rec.Attempts, rec.Usage.PromptTokens, rec.Usage.CompletionTokens, rec.Usage.TotalTokens,
		rec.FinishReason, rec.StartedAt.UTC(), rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("recording call: %w", err)
	}
	return nil
}

// List returns the most recent records first.
func (s *callLogStore) List(ctx context.Context, limit int) ([]domain.CallRecord, error) {
	if limit <= 0 {
		limit = DefaultCallListLimit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, operation, model, prompt, response, status, error, attempts,
			prompt_tokens, completion_tokens, total_tokens, finish_reason, started_at, duration_ms
		FROM call_logs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying calls: %w", err)
	}
	defer rows.Close()

	var out []domain.CallRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.CallRecord
		var status string
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.Operation, &rec.Model, &rec.Prompt, &rec.Response, &status,
			&rec.Error, &rec.Attempts, &rec.Usage.PromptTokens, &rec.Usage.CompletionTokens,
			&rec.Usage.TotalTokens, &rec.FinishReason, &rec.StartedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		rec.Status = domain.CallStatus(status)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating calls: %w", err)
	}
	return out, nil
}
