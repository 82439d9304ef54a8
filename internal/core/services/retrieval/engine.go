// Package retrieval ranks stored entities against a query by embedding
// similarity, by cross-encoder rerank, or by the Generative-Agents
// recency/importance/relevance composite.
//
// Scoring is pushed down to storage; the engine embeds the query, orders
// the returned rows best-first and applies the item and token limits.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// TokenCounter measures content against MaxTokens.
type TokenCounter interface {
	Count(text string) int
}

var validate = validator.New()

// Engine ranks entities by similarity, optionally reranked.
type Engine[E domain.Searchable] struct {
	embedder driven.EmbeddingClient
	store    driven.StorageQuery[E]
	tokens   TokenCounter
}

// NewEngine creates an engine over store.
func NewEngine[E domain.Searchable](embedder driven.EmbeddingClient, store driven.StorageQuery[E], tokens TokenCounter) *Engine[E] {
	return &Engine[E]{embedder: embedder, store: store, tokens: tokens}
}

// VectorSearch embeds query once and returns the closest entities under
// params.Metric, best-first.
func (e *Engine[E]) VectorSearch(ctx context.Context, query string, params domain.SearchParams) ([]domain.VectorSearchResult[E], error) {
	if err := e.check(params, params); err != nil {
		return nil, err
	}
	candidates, err := e.candidates(ctx, query, params, params.MaxItems)
	if err != nil {
		return nil, err
	}
	return truncate(candidates, params, e.tokens, func(r domain.VectorSearchResult[E]) string {
		return r.Entity.Text()
	}), nil
}

// RerankSearch fetches an enlarged similarity pool, scores every candidate
// with the cross-encoder in one batch and orders by that score alone.
func (e *Engine[E]) RerankSearch(ctx context.Context, query string, params domain.RerankParams) ([]domain.ReRankResult[E], error) {
	if err := e.check(params, params.SearchParams); err != nil {
		return nil, err
	}
	pool, err := e.candidates(ctx, query, params.SearchParams, params.PoolSize())
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return []domain.ReRankResult[E]{}, nil
	}

	passages := make([]string, len(pool))
	for i, c := range pool {
		passages[i] = c.Entity.Text()
	}
	scores, err := e.embedder.RerankScore(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	if len(scores) != len(pool) {
		return nil, &domain.OutputShapeError{Collaborator: "rerank",
			Reason: fmt.Sprintf("got %d scores for %d passages", len(scores), len(pool))}
	}
	logger.Debug("Reranked %d candidates", len(pool))

	results := make([]domain.ReRankResult[E], len(pool))
	for i, c := range pool {
		results[i] = domain.ReRankResult[E]{VectorSearchResult: c, RerankScore: scores[i]}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RerankScore > results[j].RerankScore
	})
	return truncate(results, params.SearchParams, e.tokens, func(r domain.ReRankResult[E]) string {
		return r.Entity.Text()
	}), nil
}

// check validates params and the metric against the encoder.
func (e *Engine[E]) check(params any, shared domain.SearchParams) error {
	if err := validateParams(params); err != nil {
		return err
	}
	if shared.Metric == domain.MetricInnerProduct && !e.embedder.IsNormalized() {
		return domain.NewConfigurationError("metric",
			"inner product needs normalised embeddings, %s does not produce them", e.embedder.EncoderName())
	}
	return nil
}

// embedQuery encodes query with the query-side encoder.
func (e *Engine[E]) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	vecs, err := e.embedder.EncodeQuery(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, &domain.OutputShapeError{Collaborator: e.embedder.EncoderName(),
			Reason: fmt.Sprintf("expected one query vector, got %d", len(vecs))}
	}
	return vecs[0], nil
}

// candidates runs the similarity pushdown and orders rows best-first.
func (e *Engine[E]) candidates(ctx context.Context, query string, params domain.SearchParams, limit int) ([]domain.VectorSearchResult[E], error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.Query(ctx, domain.ScoringQuery{
		Kind:      domain.ScoringSimilarity,
		Metric:    params.Metric,
		Embedding: vec,
		Filters:   params.Filters,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query storage: %w", err)
	}

	out := make([]domain.VectorSearchResult[E], len(rows))
	for i, row := range rows {
		out[i] = domain.VectorSearchResult[E]{Entity: row.Entity, Distance: row.Similarity, Metric: params.Metric}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance > out[j].Distance })
	logger.Debug("Storage returned %d candidates (limit %d)", len(out), limit)
	return out, nil
}

// truncate keeps the longest prefix within both limits. It stops at the first
// item that would exceed either; later, cheaper items are not considered.
func truncate[R any](items []R, params domain.SearchParams, tokens TokenCounter, text func(R) string) []R {
	used := 0
	for i, item := range items {
		if params.MaxItems > 0 && i == params.MaxItems {
			return items[:i]
		}
		if params.MaxTokens > 0 {
			n := tokens.Count(text(item))
			if used+n > params.MaxTokens {
				return items[:i]
			}
			used += n
		}
	}
	return items
}

// validateParams reports the first invalid field as a *domain.ConfigurationError.
func validateParams(params any) error {
	if err := validate.Struct(params); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return domain.NewConfigurationError(strings.ToLower(fe.Field()),
				"failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
		}
		return domain.NewConfigurationError("", "%v", err)
	}
	return nil
}
