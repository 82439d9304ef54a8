package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SearchRequest selects a strategy and its parameters.
type SearchRequest struct {
	Query    string
	Strategy domain.Strategy

	// Params carries the shared limits, the metric and filters, and the
	// composite weights used by the Generative-Agents strategy.
	Params domain.GenAgentsParams

	// Overshoot sizes the rerank first pass.
	Overshoot int
}

// SearchHit is one ranked result, flattened across strategies.
type SearchHit struct {
	ID      string
	Content string

	// Score is the value results are ordered by for the strategy used.
	Score float64

	// Similarity is the metric value, larger is better.
	Similarity float64

	// Set by the rerank strategy.
	RerankScore float64 `json:",omitempty" yaml:",omitempty"`

	// Set by the Generative-Agents strategy.
	Recency    float64 `json:",omitempty" yaml:",omitempty"`
	Relevance  float64 `json:",omitempty" yaml:",omitempty"`
	Importance float64 `json:",omitempty" yaml:",omitempty"`
}

// SearchService ranks tree nodes and memories against a query.
type SearchService interface {
	// SearchNodes supports the vector and rerank strategies.
	SearchNodes(ctx context.Context, req SearchRequest) ([]SearchHit, error)

	// SearchMemories supports every strategy.
	SearchMemories(ctx context.Context, req SearchRequest) ([]SearchHit, error)

	// Wait blocks until background access updates have finished.
	Wait()
}
