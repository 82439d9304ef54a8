package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/core/services/retrieval"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService dispatches queries to the retrieval engines.
type SearchService struct {
	nodes    *retrieval.Engine[domain.Node]
	memories *retrieval.RecencyEngine[domain.Memory]
}

// NewSearchService creates a new search service. Either engine may be nil,
// in which case searches against it are rejected.
func NewSearchService(
	nodes *retrieval.Engine[domain.Node],
	memories *retrieval.RecencyEngine[domain.Memory],
) *SearchService {
	return &SearchService{nodes: nodes, memories: memories}
}

// SearchNodes ranks tree nodes. Nodes have no importance or access time, so
// the Generative-Agents strategy is unsupported here.
func (s *SearchService) SearchNodes(ctx context.Context, req driving.SearchRequest) ([]driving.SearchHit, error) {
	if s.nodes == nil {
		return nil, domain.NewConfigurationError("storage", "node search is not configured")
	}
	logger.Debug("searching nodes: strategy=%s metric=%s", req.Strategy, req.Params.Metric)

	switch req.Strategy {
	case domain.StrategyVector, "":
		results, err := s.nodes.VectorSearch(ctx, req.Query, req.Params.SearchParams)
		if err != nil {
			return nil, err
		}
		return vectorHits(results), nil
	case domain.StrategyRerank:
		results, err := s.nodes.RerankSearch(ctx, req.Query, rerankParams(req))
		if err != nil {
			return nil, err
		}
		return rerankHits(results), nil
	case domain.StrategyGenAgents:
		return nil, fmt.Errorf("%w: %s search over nodes", domain.ErrUnsupportedType, req.Strategy)
	default:
		return nil, domain.NewConfigurationError("strategy", "unknown strategy %q", req.Strategy)
	}
}

// SearchMemories ranks memories with any strategy.
func (s *SearchService) SearchMemories(ctx context.Context, req driving.SearchRequest) ([]driving.SearchHit, error) {
	if s.memories == nil {
		return nil, domain.NewConfigurationError("storage", "memory search is not configured")
	}
	logger.Debug("searching memories: strategy=%s metric=%s", req.Strategy, req.Params.Metric)

	switch req.Strategy {
	case domain.StrategyVector, "":
		results, err := s.memories.VectorSearch(ctx, req.Query, req.Params.SearchParams)
		if err != nil {
			return nil, err
		}
		return vectorHits(results), nil
	case domain.StrategyRerank:
		results, err := s.memories.RerankSearch(ctx, req.Query, rerankParams(req))
		if err != nil {
			return nil, err
		}
		return rerankHits(results), nil
	case domain.StrategyGenAgents:
		results, err := s.memories.GenerativeAgentsSearch(ctx, req.Query, req.Params)
		if err != nil {
			return nil, err
		}
		hits := make([]driving.SearchHit, len(results))
		for i, r := range results {
			hits[i] = hit(r.Entity, r.Distance)
			hits[i].Score = r.CompositeScore
			hits[i].Recency = r.RecencyScore
			hits[i].Relevance = r.RelevanceScore
			hits[i].Importance = r.ImportanceScore
		}
		return hits, nil
	default:
		return nil, domain.NewConfigurationError("strategy", "unknown strategy %q", req.Strategy)
	}
}

// Wait blocks until background access updates have finished.
func (s *SearchService) Wait() {
	if s.memories != nil {
		s.memories.Wait()
	}
}

func rerankParams(req driving.SearchRequest) domain.RerankParams {
	overshoot := req.Overshoot
	if overshoot == 0 {
		overshoot = domain.DefaultOvershoot
	}
	return domain.RerankParams{SearchParams: req.Params.SearchParams, OvershootMultiplier: overshoot}
}

func hit(e domain.Searchable, similarity float64) driving.SearchHit {
	return driving.SearchHit{
		ID:         e.EntityID(),
		Content:    e.Text(),
		Score:      similarity,
		Similarity: similarity,
	}
}

func vectorHits[E domain.Searchable](results []domain.VectorSearchResult[E]) []driving.SearchHit {
	hits := make([]driving.SearchHit, len(results))
	for i, r := range results {
		hits[i] = hit(r.Entity, r.Distance)
	}
	return hits
}

func rerankHits[E domain.Searchable](results []domain.ReRankResult[E]) []driving.SearchHit {
	hits := make([]driving.SearchHit, len(results))
	for i, r := range results {
		hits[i] = hit(r.Entity, r.Distance)
		hits[i].Score = r.RerankScore
		hits[i].RerankScore = r.RerankScore
	}
	return hits
}
