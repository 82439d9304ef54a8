package services

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Environment variables consulted when no API key is configured.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvRerankKey    = "RERANK_API_KEY"
)

const defaultOllamaURL = "http://localhost:11434"

var validate = validator.New()

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves current application settings. Stored values override the
// defaults; stored values of the wrong kind or outside an enum are ignored.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()

	for key, k := range settingKeys {
		if _, ok := s.configStore.Get(key); !ok {
			continue
		}
		var val any
		switch k.kind {
		case kindInt:
			val = s.configStore.GetInt(key)
		case kindFloat:
			val = s.configStore.GetFloat(key)
		case kindBool:
			val = s.configStore.GetBool(key)
		default:
			str := s.configStore.GetString(key)
			if str == "" {
				continue
			}
			val = str
		}
		_ = k.set(&settings, val)
	}

	s.applyEnvKeys(&settings)
	return &settings, nil
}

// applyEnvKeys fills empty API keys from the environment.
func (s *SettingsService) applyEnvKeys(settings *domain.AppSettings) {
	if settings.Embedding.APIKey == "" && settings.Embedding.Provider == domain.AIProviderOpenAI {
		settings.Embedding.APIKey = s.env(EnvOpenAIKey)
	}
	if settings.LLM.APIKey == "" {
		switch settings.LLM.Provider {
		case domain.AIProviderOpenAI:
			settings.LLM.APIKey = s.env(EnvOpenAIKey)
		case domain.AIProviderAnthropic:
			settings.LLM.APIKey = s.env(EnvAnthropicKey)
		}
	}
	if settings.Rerank.APIKey == "" {
		settings.Rerank.APIKey = s.env(EnvRerankKey)
	}
}

func (s *SettingsService) env(name string) string {
	v, _ := s.lookupEnv(name)
	return v
}

// Save persists application settings. Secrets are written only when set
// and not supplied by the environment.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	envSecrets := map[string]bool{}
	for _, name := range []string{EnvOpenAIKey, EnvAnthropicKey, EnvRerankKey} {
		if v := s.env(name); v != "" {
			envSecrets[v] = true
		}
	}

	for _, key := range s.Keys() {
		k := settingKeys[key]
		val := k.get(settings)
		if k.secret {
			str, _ := val.(string)
			if str == "" || envSecrets[str] {
				continue
			}
		}
		if err := s.configStore.Set(key, val); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	if err := s.configStore.Save(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Set parses value for key and saves it if the resulting settings validate.
func (s *SettingsService) Set(key, value string) error {
	k, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	parsed, err := k.parse(strings.TrimSpace(value))
	if err != nil {
		return domain.NewConfigurationError(key, "cannot parse %q: %v", value, err)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := k.set(settings, parsed); err != nil {
		return domain.NewConfigurationError(key, "%v", err)
	}
	if err := validateSettings(settings); err != nil {
		return err
	}
	return s.Save(settings)
}

// Keys lists every settable key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKeys))
	for key := range settingKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the effective value of key. Secrets are masked.
func (s *SettingsService) Value(settings *domain.AppSettings, key string) (any, error) {
	k, ok := settingKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	val := k.get(settings)
	if k.secret {
		if str, _ := val.(string); str != "" {
			return maskSecret(str), nil
		}
	}
	return val, nil
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	valid := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	if apiKey == "" && provider == domain.AIProviderOpenAI {
		apiKey = s.env(EnvOpenAIKey)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}
	settings.Embedding.Normalized = domain.NormalizedEmbeddingModels()[settings.Embedding.Model]

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	if apiKey == "" {
		switch provider {
		case domain.AIProviderOpenAI:
			apiKey = s.env(EnvOpenAIKey)
		case domain.AIProviderAnthropic:
			apiKey = s.env(EnvAnthropicKey)
		}
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks every setting against its constraints.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return validateSettings(settings)
}

// validateSettings reports the first invalid field as a *domain.ConfigurationError.
func validateSettings(settings *domain.AppSettings) error {
	if err := validate.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return domain.NewConfigurationError(strings.ToLower(fe.Namespace()),
				"failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
		}
		return domain.NewConfigurationError("", "%v", err)
	}

	seg := settings.Segmenter
	if seg.Overlap >= seg.MaxChunkSize {
		return domain.NewConfigurationError("segmenter.overlap",
			"%d must be less than max chunk size %d", seg.Overlap, seg.MaxChunkSize)
	}
	r := settings.Retrieval
	if r.AlphaRecency+r.AlphaImportance+r.AlphaRelevance <= 0 {
		return domain.NewConfigurationError("retrieval.alpha", "composite weights must not all be zero")
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}
