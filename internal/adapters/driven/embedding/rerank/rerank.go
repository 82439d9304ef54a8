// Package rerank provides a cross-encoder reranker adapter for services
// exposing the common /rerank endpoint (Jina, Cohere, text-embeddings-inference).
package rerank

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/adapters/driven/httpx"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultModel   = "jina-reranker-v2-base-multilingual"
	DefaultTimeout = 60 * time.Second
)

const collaborator = "rerank"

// Config holds configuration for the rerank service.
type Config struct {
	// BaseURL is the API base URL (required). The adapter posts to BaseURL + "/rerank".
	BaseURL string

	// Model is the cross-encoder model name.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// Reranker scores passages with a hosted cross-encoder.
type Reranker struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// New creates a reranker.
func New(cfg Config) (*Reranker, error) {
	if cfg.BaseURL == "" {
		return nil, domain.NewConfigurationError("rerank.base_url", "rerank: base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Reranker{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
	}, nil
}

// Rerank scores every passage against query in one request. Scores are
// returned in passage order.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	headers := map[string]string{}
	if r.apiKey != "" {
		headers["Authorization"] = "Bearer " + r.apiKey
	}

	var resp rerankResponse
	err := httpx.DoJSON(ctx, r.client, httpx.Request{
		Collaborator: collaborator,
		Op:           "rerank",
		URL:          r.baseURL + "/rerank",
		Headers:      headers,
		Body: rerankRequest{
			Model:     r.model,
			Query:     query,
			Documents: passages,
			TopN:      len(passages),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != len(passages) {
		return nil, &domain.OutputShapeError{
			Collaborator: collaborator,
			Reason:       fmt.Sprintf("got %d scores for %d passages", len(resp.Results), len(passages)),
		}
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(passages) || seen[res.Index] {
			return nil, &domain.OutputShapeError{Collaborator: collaborator, Reason: fmt.Sprintf("bad result index %d", res.Index)}
		}
		seen[res.Index] = true
		scores[res.Index] = res.RelevanceScore
	}
	return scores, nil
}

// ModelName returns the cross-encoder model name.
func (r *Reranker) ModelName() string {
	return r.model
}
