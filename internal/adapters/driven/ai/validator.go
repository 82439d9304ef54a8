package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// defaultPingTimeout bounds one connectivity check.
const defaultPingTimeout = 5 * time.Second

// ConfigValidator checks provider settings by building the service and
// pinging it. Unconfigured providers pass.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator creates a validator with the default ping timeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: defaultPingTimeout}
}

// WithTimeout returns a copy that waits at most d per ping.
func (v *ConfigValidator) WithTimeout(d time.Duration) *ConfigValidator {
	return &ConfigValidator{timeout: d}
}

// ValidateEmbedding reports ErrEmbeddingUnavailable when the embedding
// provider cannot be built or does not answer.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	defer svc.Close()
	return v.ping(domain.ErrEmbeddingUnavailable, settings.Provider, svc.Ping)
}

// ValidateLLM reports ErrLLMUnavailable when the LLM provider cannot be
// built or does not answer.
func (v *ConfigValidator) ValidateLLM(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateLLMService(settings, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	defer svc.Close()
	return v.ping(domain.ErrLLMUnavailable, settings.Provider, svc.Ping)
}

func (v *ConfigValidator) ping(sentinel error, provider domain.AIProvider, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	if err := ping(ctx); err != nil {
		return fmt.Errorf("%w: %s unreachable: %w", sentinel, provider, err)
	}
	return nil
}
