// Package ollama embeds text with a local Ollama server.
package ollama

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

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768
)

const collaborator = "ollama-embedding"

// knownDimensions covers the embedding models commonly pulled into Ollama.
var knownDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
	"bge-m3":                 1024,
}

// Config selects the server and model. Zero fields take the defaults above;
// Dimensions falls back to knownDimensions before DefaultDimensions.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService calls Ollama's /api/embed.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewEmbeddingService(cfg Config) *EmbeddingService {
	s := &EmbeddingService{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
	if s.baseURL == "" {
		s.baseURL = DefaultBaseURL
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.client.Timeout == 0 {
		s.client.Timeout = DefaultTimeout
	}
	if s.dimensions == 0 {
		s.dimensions = modelDimensions(s.model)
	}
	return s
}

// modelDimensions ignores a ":tag" suffix such as "nomic-embed-text:latest".
func modelDimensions(model string) int {
	name, _, _ := strings.Cut(model, ":")
	if d, ok := knownDimensions[name]; ok {
		return d
	}
	return DefaultDimensions
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch sends all texts in one request. Over-long inputs are truncated
// server-side.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Collaborator: collaborator,
		Op:           "embed",
		URL:          s.baseURL + "/api/embed",
		Body:         embedRequest{Model: s.model, Input: texts, Truncate: true},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &domain.OutputShapeError{
			Collaborator: collaborator,
			Reason:       fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Embeddings), len(texts)),
		}
	}

	return resp.Embeddings, nil
}

func (s *EmbeddingService) Dimensions() int { return s.dimensions }

func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists local models, which needs no model loaded.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Collaborator: collaborator,
		Op:           "ping",
		Method:       http.MethodGet,
		URL:          s.baseURL + "/api/tags",
	}, nil)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

func (s *EmbeddingService) Close() error { return nil }
