// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/recall/internal/adapters/driven/httpx"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

const collaborator = "openai-embedding"

// Native output sizes. Only the text-embedding-3 family accepts a smaller
// requested size.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config for the embeddings endpoint. BaseURL may point at any
// OpenAI-compatible server; Dimensions asks a text-embedding-3 model for a
// shortened vector.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService calls the OpenAI embeddings API through go-openai.
type EmbeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
	shorten    bool
}

// NewEmbeddingService fails with a ConfigurationError when APIKey is empty.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewConfigurationError("embedding.api_key", "openai: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	native, known := modelDimensions[model]
	if !known {
		native = modelDimensions[DefaultModel]
	}
	dims := native
	shorten := cfg.Dimensions > 0 && strings.HasPrefix(model, "text-embedding-3-")
	if cfg.Dimensions > 0 {
		dims = cfg.Dimensions
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &EmbeddingService{
		client:     openai.NewClientWithConfig(oc),
		model:      model,
		dimensions: dims,
		shorten:    shorten,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, &domain.OutputShapeError{Collaborator: collaborator, Reason: "no embedding returned"}
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(s.model),
	}
	if s.shorten {
		req.Dimensions = s.dimensions
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, wrapError("embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &domain.OutputShapeError{
			Collaborator: collaborator,
			Reason:       fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(texts)),
		}
	}

	// Data may arrive out of input order.
	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, &domain.OutputShapeError{Collaborator: collaborator, Reason: "embedding index out of range"}
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}

func wrapError(op string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return httpx.Classify(collaborator, op, status, err)
}

func (s *EmbeddingService) Dimensions() int { return s.dimensions }

func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists models, which checks the key without spending tokens.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", wrapError("ping", err))
	}
	return nil
}

func (s *EmbeddingService) Close() error { return nil }
