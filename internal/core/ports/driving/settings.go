package driving

import "github.com/custodia-labs/recall/internal/core/domain"

// SettingsService reads and writes the persisted AppSettings. Settings
// returned by Get have defaults applied and API keys filled from the
// environment when none is stored.
type SettingsService interface {
	Get() (*domain.AppSettings, error)
	GetDefaults() domain.AppSettings
	// Save validates before persisting.
	Save(settings *domain.AppSettings) error

	// Keys lists every dotted key Set accepts, sorted.
	Keys() []string
	// Set parses value for key ("retrieval.metric", "index.max_depth").
	// The whole settings tree must still validate afterwards.
	Set(key, value string) error
	// Value reads one dotted key out of settings.
	Value(settings *domain.AppSettings, key string) (any, error)
	Validate() error

	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// ValidateEmbeddingConfig and ValidateLLMConfig ping the configured
	// provider; a failure wraps ErrEmbeddingUnavailable or ErrLLMUnavailable.
	ValidateEmbeddingConfig() error
	ValidateLLMConfig() error
}
