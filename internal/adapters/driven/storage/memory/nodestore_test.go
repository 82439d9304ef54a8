package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func seedNodes(t *testing.T) *NodeStore {
	t.Helper()
	store := NewNodeStore()
	require.NoError(t, store.SaveNodes(context.Background(), []domain.Node{
		{ID: "root", DocumentID: "d", Depth: 1, Index: 0, ChildIDs: []string{"a", "b", "c"}, Embedding: []float32{1, 1}},
		{ID: "a", DocumentID: "d", Depth: 0, Index: 0, IsLeaf: true, ParentID: strPtr("root"), Embedding: []float32{1, 0}},
		{ID: "b", DocumentID: "d", Depth: 0, Index: 1, IsLeaf: true, ParentID: strPtr("root"), Embedding: []float32{0, 1}},
		{ID: "c", DocumentID: "d", Depth: 0, Index: 2, IsLeaf: true, ParentID: strPtr("root")},
		{ID: "x", DocumentID: "other", Depth: 0, Index: 0, IsLeaf: true, Embedding: []float32{1, 0}},
	}))
	return store
}

func TestNodeStore_GetNodesOrdered(t *testing.T) {
	store := seedNodes(t)
	nodes, err := store.GetNodes(context.Background(), "d")
	require.NoError(t, err)

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"a", "b", "c", "root"}, ids)
}

func TestNodeStore_QueryOrdersBySimilarity(t *testing.T) {
	store := seedNodes(t)
	rows, err := store.Query(context.Background(), domain.ScoringQuery{
		Kind:      domain.ScoringSimilarity,
		Metric:    domain.MetricCosine,
		Embedding: []float32{1, 0},
		Filters:   []domain.Filter{{Field: "document_id", Op: domain.FilterEq, Value: "d"}},
	})
	require.NoError(t, err)

	// c has no embedding and is skipped.
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].Entity.ID)
	assert.Equal(t, "root", rows[1].Entity.ID)
	assert.Equal(t, "b", rows[2].Entity.ID)
	assert.InDelta(t, 1.0, rows[0].Similarity, 1e-9)
	assert.GreaterOrEqual(t, rows[1].Similarity, rows[2].Similarity)
}

func TestNodeStore_QueryTiesBreakByDepthThenIndex(t *testing.T) {
	store := seedNodes(t)
	rows, err := store.Query(context.Background(), domain.ScoringQuery{
		Metric:    domain.MetricInnerProduct,
		Embedding: []float32{1, 0},
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// a, root and x all score 1; depth 0 comes first, then index.
	assert.Equal(t, 0, rows[0].Entity.Depth)
	assert.Equal(t, 0, rows[1].Entity.Depth)
}

func TestNodeStore_QueryFilters(t *testing.T) {
	store := seedNodes(t)
	rows, err := store.Query(context.Background(), domain.ScoringQuery{
		Metric:    domain.MetricEuclidean,
		Embedding: []float32{0, 1},
		Filters: []domain.Filter{
			{Field: "is_leaf", Op: domain.FilterEq, Value: true},
			{Field: "index", Op: domain.FilterIn, Value: []int{1, 2}},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Entity.ID)
	assert.InDelta(t, 0.0, rows[0].Similarity, 1e-9)
}

func TestNodeStore_QueryRejections(t *testing.T) {
	store := seedNodes(t)
	ctx := context.Background()

	_, err := store.Query(ctx, domain.ScoringQuery{Kind: domain.ScoringComposite, Metric: domain.MetricCosine,
		Composite: &domain.CompositeSpec{}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Query(ctx, domain.ScoringQuery{Metric: "manhattan"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = store.Query(ctx, domain.ScoringQuery{Metric: domain.MetricCosine,
		Filters: []domain.Filter{{Field: "author", Op: domain.FilterEq, Value: "x"}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Query(ctx, domain.ScoringQuery{Metric: domain.MetricCosine, Embedding: []float32{1, 0},
		Filters: []domain.Filter{{Field: "depth", Op: "like", Value: 1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
