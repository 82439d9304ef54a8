// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/recall/internal/adapters/driven/embedding"
	ollamaembed "github.com/custodia-labs/recall/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/recall/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/recall/internal/adapters/driven/embedding/rerank"
	anthropicllm "github.com/custodia-labs/recall/internal/adapters/driven/llm/anthropic"
	"github.com/custodia-labs/recall/internal/adapters/driven/llm/invoke"
	ollamallm "github.com/custodia-labs/recall/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/recall/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/tokenize"
)

// nomicQueryPrefix and nomicPassagePrefix are the task prefixes nomic-embed-text expects.
const (
	nomicQueryPrefix   = "search_query: "
	nomicPassagePrefix = "search_document: "
)

// Observers are the optional call observers attached to the LLM client.
type Observers struct {
	// CallLog persists one record per call when set.
	CallLog driven.CallLogStore

	// Metrics exports Prometheus call metrics when set.
	Metrics *invoke.Metrics

	// TracerProvider emits one span per call when set.
	TracerProvider trace.TracerProvider
}

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Reranker         driven.Reranker

	// EmbeddingClient and LLMClient are what core services consume.
	EmbeddingClient *embedding.Client
	LLMClient       *invoke.Client

	Warnings []string // Non-fatal issues, e.g. an unreachable reranker.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init builds every configured AI service from settings. Unconfigured
// providers are left nil; a configured but broken provider is an error.
func Init(settings *domain.AppSettings, tok tokenize.Tokenizer, obs Observers) (*InitResult, error) {
	result := &InitResult{}

	embedSvc, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	result.EmbeddingService = embedSvc

	llmSvc, err := CreateLLMService(&settings.LLM, tok)
	if err != nil {
		result.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	result.LLMService = llmSvc

	reranker, err := CreateReranker(&settings.Rerank)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("reranker disabled: %v", err))
	}
	result.Reranker = reranker

	if embedSvc != nil {
		result.EmbeddingClient = CreateEmbeddingClient(&settings.Embedding, embedSvc, reranker)
	}
	if llmSvc != nil {
		result.LLMClient = CreateLLMClient(llmSvc, settings.Invocation, obs)
	}
	return result, nil
}

// CreateLLMClient wraps svc in the invocation layer configured by settings.
func CreateLLMClient(svc driven.LLMService, settings domain.InvocationSettings, obs Observers) *invoke.Client {
	callbacks := []invoke.Callback{invoke.LoggingCallback{}}
	if obs.Metrics != nil {
		callbacks = append(callbacks, obs.Metrics)
	}
	if obs.TracerProvider != nil {
		callbacks = append(callbacks, invoke.NewTracing(obs.TracerProvider))
	}
	if obs.CallLog != nil {
		callbacks = append(callbacks, invoke.NewAuditCallback(obs.CallLog))
	}

	return invoke.New(svc,
		invoke.WithInterceptors(invoke.Standard(settings)...),
		invoke.WithCallbacks(callbacks...),
	)
}

// CreateEmbeddingClient combines an embedding service and optional reranker.
func CreateEmbeddingClient(settings *domain.EmbeddingSettings, svc driven.EmbeddingService, reranker driven.Reranker) *embedding.Client {
	cfg := embedding.Config{
		Normalized:  settings.Normalized || domain.NormalizedEmbeddingModels()[svc.ModelName()],
		Concurrency: 2,
	}
	if svc.ModelName() == "nomic-embed-text" {
		cfg.QueryPrefix = nomicQueryPrefix
		cfg.PassagePrefix = nomicPassagePrefix
	}
	return embedding.NewClient(svc, reranker, cfg)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		if settings != nil && settings.Provider == domain.AIProviderAnthropic {
			// Anthropic does not support embeddings.
			return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")
		}
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured. A nil tok uses the default tokenizer.
func CreateLLMService(settings *domain.LLMSettings, tok tokenize.Tokenizer) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL:       settings.BaseURL,
			Model:         settings.Model,
			ContextWindow: settings.ContextWindow,
		}, tok), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:        settings.APIKey,
			BaseURL:       settings.BaseURL,
			Model:         settings.Model,
			ContextWindow: settings.ContextWindow,
		}, tok)
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:        settings.APIKey,
			BaseURL:       settings.BaseURL,
			Model:         settings.Model,
			ContextWindow: settings.ContextWindow,
		}, tok)
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: LLM provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateReranker creates the cross-encoder client. Returns nil if no
// rerank endpoint is configured.
func CreateReranker(settings *domain.RerankSettings) (driven.Reranker, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	r, err := rerank.New(rerank.Config{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		APIKey:  settings.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
