package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/scoring"
)

var (
	_ driven.MemoryStore                 = (*MemoryStore)(nil)
	_ driven.StorageQuery[domain.Memory] = (*MemoryStore)(nil)
	_ driven.AccessToucher               = (*MemoryStore)(nil)
)

// MemoryStore is an in-memory implementation of driven.MemoryStore that
// evaluates similarity and composite scores in Go.
type MemoryStore struct {
	mu       sync.RWMutex
	memories map[string]domain.Memory
}

// NewMemoryStore creates a new in-memory memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memories: make(map[string]domain.Memory)}
}

// SaveMemory stores or updates a memory. Zero timestamps default to now.
func (s *MemoryStore) SaveMemory(_ context.Context, m *domain.Memory) error {
	if m == nil {
		return domain.ErrInvalidInput
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = m.Timestamp
	}
	s.mu.Lock()
	s.memories[m.ID] = *m
	s.mu.Unlock()
	return nil
}

// GetMemory retrieves a memory by ID.
func (s *MemoryStore) GetMemory(_ context.Context, id string) (*domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

// ListMemories returns every memory, newest first.
func (s *MemoryStore) ListMemories(_ context.Context) ([]domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Memory, 0, len(s.memories))
	for _, m := range s.memories {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// TouchAccessed sets LastAccessedAt for ids. Unknown ids are ignored.
func (s *MemoryStore) TouchAccessed(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if m, ok := s.memories[id]; ok {
			m.LastAccessedAt = at
			s.memories[id] = m
		}
	}
	return nil
}

// Query ranks memories by similarity or by the Generative-Agents composite.
func (s *MemoryStore) Query(_ context.Context, q domain.ScoringQuery) ([]domain.ScoredRow[domain.Memory], error) {
	if !q.Metric.IsValid() {
		return nil, fmt.Errorf("%w: metric %q", domain.ErrUnsupportedType, q.Metric)
	}
	composite := q.Kind == domain.ScoringComposite
	if composite && q.Composite == nil {
		return nil, fmt.Errorf("%w: composite query without weights", domain.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ScoredRow[domain.Memory]
	for _, m := range s.memories {
		if len(m.Embedding) == 0 {
			continue
		}
		ok, err := matchFilters(q.Filters, func(field string) (any, bool) { return memoryField(m, field) })
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		row := domain.ScoredRow[domain.Memory]{Entity: m}
		if composite {
			scores := scoring.Score(*q.Composite, q.Metric, q.Embedding, m.Embedding,
				m.Importance, unixSeconds(m.LastAccessedAt))
			row.Similarity = scores.Similarity
			row.Relevance = scores.Relevance
			row.Recency = scores.Recency
			row.Importance = scores.Importance
			row.Composite = scores.Composite
		} else {
			row.Similarity = scoring.Similarity(q.Metric, q.Embedding, m.Embedding)
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ka, kb := a.Similarity, b.Similarity
		if composite {
			ka, kb = a.Composite, b.Composite
		}
		if ka != kb {
			return ka > kb
		}
		return a.Entity.ID < b.Entity.ID
	})
	return truncateRows(out, q.Limit), nil
}

// memoryField resolves columns first and falls back to dotted metadata keys.
func memoryField(m domain.Memory, field string) (any, bool) {
	switch field {
	case "id":
		return m.ID, true
	case "timestamp":
		return m.Timestamp, true
	case "last_accessed_at":
		return m.LastAccessedAt, true
	case "importance":
		return m.Importance, true
	case "depth":
		return m.Depth, true
	case "is_shared":
		return m.IsShared, true
	default:
		return metadataValue(m.Metadata, field)
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
