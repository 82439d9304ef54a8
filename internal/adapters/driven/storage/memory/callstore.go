package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.CallLogStore = (*CallLogStore)(nil)

// CallLogStore keeps LLM call records in memory.
type CallLogStore struct {
	mu      sync.RWMutex
	records []domain.CallRecord
}

// NewCallLogStore creates an empty call log.
func NewCallLogStore() *CallLogStore {
	return &CallLogStore{}
}

// Record appends a call record.
func (s *CallLogStore) Record(_ context.Context, rec *domain.CallRecord) error {
	if rec == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	s.records = append(s.records, *rec)
	s.mu.Unlock()
	return nil
}

// List returns up to limit records, most recent first. A non-positive limit
// returns everything.
func (s *CallLogStore) List(_ context.Context, limit int) ([]domain.CallRecord, error) {
	s.mu.RLock()
	out := make([]domain.CallRecord, len(s.records))
	copy(out, s.records)
	s.mu.RUnlock()

	// Stable on insertion order, so records sharing a start time stay newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
