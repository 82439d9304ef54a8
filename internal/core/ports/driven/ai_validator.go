package driven

import "github.com/custodia-labs/recall/internal/core/domain"

// AIConfigValidator checks that configured providers answer before
// settings are relied on. Unconfigured providers are not an error.
type AIConfigValidator interface {
	ValidateEmbedding(settings *domain.EmbeddingSettings) error
	ValidateLLM(settings *domain.LLMSettings) error
}
