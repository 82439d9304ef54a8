package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func ollamaStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models": []}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigValidator_UnconfiguredPasses(t *testing.T) {
	v := NewConfigValidator()

	assert.NoError(t, v.ValidateEmbedding(nil))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Model: "m"}))
	assert.NoError(t, v.ValidateLLM(nil))
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Model: "m"}))
}

func TestConfigValidator_PingsProvider(t *testing.T) {
	srv := ollamaStub(t)
	v := NewConfigValidator()

	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
}

func TestConfigValidator_UnreachableProvider(t *testing.T) {
	srv := ollamaStub(t)
	url := srv.URL
	srv.Close()
	v := NewConfigValidator().WithTimeout(time.Second)

	err := v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: url})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.Contains(t, err.Error(), "ollama unreachable")

	err = v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: url})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
