package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/scoring"
)

func saveMemories(t *testing.T, store *MemoryStore, at time.Time, importances ...int) {
	t.Helper()
	for i, imp := range importances {
		require.NoError(t, store.SaveMemory(context.Background(), &domain.Memory{
			ID:         fmt.Sprintf("m%d", i),
			Content:    fmt.Sprintf("memory %d", i),
			Embedding:  []float32{1, 0},
			Timestamp:  at,
			Importance: imp,
			Metadata:   map[string]any{"agent": map[string]any{"name": "bob"}},
		}))
	}
}

func compositeQuery(t *testing.T, params domain.GenAgentsParams, now time.Time) domain.ScoringQuery {
	t.Helper()
	spec, err := scoring.NewCompositeSpec(params, unixSeconds(now))
	require.NoError(t, err)
	return domain.ScoringQuery{
		Kind:      domain.ScoringComposite,
		Metric:    domain.MetricCosine,
		Embedding: []float32{1, 0},
		Composite: spec,
	}
}

func TestMemoryStore_SaveGetList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	m := &domain.Memory{ID: "m1", Content: "saw a cat"}
	require.NoError(t, store.SaveMemory(ctx, m))
	assert.False(t, m.Timestamp.IsZero())
	assert.Equal(t, m.Timestamp, m.LastAccessedAt)

	later := &domain.Memory{ID: "m2", Content: "fed the cat", Timestamp: m.Timestamp.Add(time.Minute)}
	require.NoError(t, store.SaveMemory(ctx, later))

	list, err := store.ListMemories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "m2", list[0].ID)

	_, err = store.GetMemory(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.SaveMemory(ctx, nil), domain.ErrInvalidInput)
}

func TestMemoryStore_CompositeOrdersByImportance(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	saveMemories(t, store, now, 2, 9, 5)

	rows, err := store.Query(context.Background(), compositeQuery(t, domain.DefaultGenAgentsParams(), now))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var got []int
	for _, r := range rows {
		got = append(got, r.Entity.Importance)
		assert.InDelta(t, 1.0, r.Recency, 1e-9)
		assert.InDelta(t, 1.0, r.Relevance, 1e-9)
	}
	assert.Equal(t, []int{9, 5, 2}, got)
	assert.InDelta(t, 1.0, rows[0].Composite, 1e-9)
}

func TestMemoryStore_RecencyDecays(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	saveMemories(t, store, now.Add(-24*time.Hour), 5)

	params := domain.DefaultGenAgentsParams()
	params.AlphaImportance = 0
	params.AlphaRelevance = 0
	rows, err := store.Query(context.Background(), compositeQuery(t, params, now))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.5, rows[0].Recency, 1e-9)
	assert.InDelta(t, 0.5, rows[0].Composite, 1e-9)
}

func TestMemoryStore_MetadataFilterAndLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	saveMemories(t, store, now, 1, 2, 3, 4)
	require.NoError(t, store.SaveMemory(ctx, &domain.Memory{
		ID: "alice", Embedding: []float32{1, 0}, Importance: 9,
		Metadata: map[string]any{"agent": map[string]any{"name": "alice"}},
	}))

	q := compositeQuery(t, domain.DefaultGenAgentsParams(), now)
	q.Filters = []domain.Filter{
		{Field: "agent.name", Op: domain.FilterEq, Value: "bob"},
		{Field: "importance", Op: domain.FilterGte, Value: 2},
	}
	q.Limit = 2

	rows, err := store.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 4, rows[0].Entity.Importance)
	assert.Equal(t, 3, rows[1].Entity.Importance)
}

func TestMemoryStore_SimilarityQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveMemory(ctx, &domain.Memory{ID: "near", Embedding: []float32{1, 0.1}}))
	require.NoError(t, store.SaveMemory(ctx, &domain.Memory{ID: "far", Embedding: []float32{0, 1}}))
	require.NoError(t, store.SaveMemory(ctx, &domain.Memory{ID: "blank"}))

	rows, err := store.Query(ctx, domain.ScoringQuery{Metric: domain.MetricCosine, Embedding: []float32{1, 0}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "near", rows[0].Entity.ID)
	assert.Zero(t, rows[0].Composite)
}

func TestMemoryStore_QueryErrors(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Query(ctx, domain.ScoringQuery{Kind: domain.ScoringComposite, Metric: domain.MetricCosine})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Query(ctx, domain.ScoringQuery{Metric: "hamming"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	require.NoError(t, store.SaveMemory(ctx, &domain.Memory{ID: "m", Embedding: []float32{1}}))
	_, err = store.Query(ctx, domain.ScoringQuery{Metric: domain.MetricCosine, Embedding: []float32{1},
		Filters: []domain.Filter{{Field: "depth", Op: domain.FilterIn, Value: 0}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMemoryStore_TouchAccessed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveMemory(ctx, &domain.Memory{ID: "m1", Timestamp: past}))

	now := past.Add(48 * time.Hour)
	require.NoError(t, store.TouchAccessed(ctx, []string{"m1", "ghost"}, now))

	got, err := store.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, now.Equal(got.LastAccessedAt))
	assert.True(t, past.Equal(got.Timestamp))
}
