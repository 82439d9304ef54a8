package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/scoring"
	"github.com/custodia-labs/recall/internal/logger"
)

// touchTimeout bounds one best-effort access update.
const touchTimeout = 10 * time.Second

// RecencyEngine adds Generative-Agents search over entities that carry an
// importance and a last-access time.
type RecencyEngine[E domain.Recallable] struct {
	*Engine[E]

	toucher driven.AccessToucher
	now     func() time.Time
	touches sync.WaitGroup
}

// NewRecencyEngine creates an engine over store. toucher may be nil, in which
// case searches that ask to touch accessed entities are rejected.
func NewRecencyEngine[E domain.Recallable](embedder driven.EmbeddingClient, store driven.StorageQuery[E],
	toucher driven.AccessToucher, tokens TokenCounter,
) *RecencyEngine[E] {
	return &RecencyEngine[E]{
		Engine:  NewEngine[E](embedder, store, tokens),
		toucher: toucher,
		now:     time.Now,
	}
}

// GenerativeAgentsSearch ranks by the weighted sum of relevance, recency and
// importance. When params.TouchAccessed is set, the returned entities have
// their last-access time bumped in the background.
func (e *RecencyEngine[E]) GenerativeAgentsSearch(ctx context.Context, query string, params domain.GenAgentsParams) ([]domain.GenAgentsSearchResult[E], error) {
	if err := e.check(params, params.SearchParams); err != nil {
		return nil, err
	}
	if params.TouchAccessed && e.toucher == nil {
		return nil, domain.NewConfigurationError("touch_accessed", "storage cannot record access times")
	}

	now := e.now()
	spec, err := scoring.NewCompositeSpec(params, float64(now.UnixNano())/1e9)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.Query(ctx, domain.ScoringQuery{
		Kind:      domain.ScoringComposite,
		Metric:    params.Metric,
		Embedding: vec,
		Filters:   params.Filters,
		Limit:     params.MaxItems,
		Composite: spec,
	})
	if err != nil {
		return nil, fmt.Errorf("query storage: %w", err)
	}

	results := make([]domain.GenAgentsSearchResult[E], len(rows))
	for i, row := range rows {
		results[i] = domain.GenAgentsSearchResult[E]{
			VectorSearchResult: domain.VectorSearchResult[E]{Entity: row.Entity, Distance: row.Similarity, Metric: params.Metric},
			RecencyScore:       row.Recency,
			RelevanceScore:     row.Relevance,
			ImportanceScore:    row.Importance,
			CompositeScore:     row.Composite,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompositeScore > results[j].CompositeScore
	})
	results = truncate(results, params.SearchParams, e.tokens, func(r domain.GenAgentsSearchResult[E]) string {
		return r.Entity.Text()
	})

	if params.TouchAccessed && len(results) > 0 {
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.Entity.EntityID()
		}
		e.touch(ctx, ids, now)
	}
	return results, nil
}

// touch records access without holding up the read. Failures are logged.
func (e *RecencyEngine[E]) touch(ctx context.Context, ids []string, at time.Time) {
	e.touches.Add(1)
	go func() {
		defer e.touches.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		if err := e.toucher.TouchAccessed(ctx, ids, at); err != nil {
			logger.Warnw("touch accessed failed", "count", len(ids), "error", err)
		}
	}()
}

// Wait blocks until pending access updates have finished.
func (e *RecencyEngine[E]) Wait() {
	e.touches.Wait()
}
